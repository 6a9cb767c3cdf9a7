package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"dealpilot/internal/middleware"
	"dealpilot/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultSearchLimit is the number of chunks returned when the caller
	// does not specify one.
	DefaultSearchLimit = 5

	// fallbackSimilarity is the sentinel score for text-fallback results,
	// where no true distance is computed.
	fallbackSimilarity = 0.5

	// minTokenLen filters query words too short to be useful search terms.
	minTokenLen = 3
	// maxFallbackTokens caps how many query words the fallback matches on.
	maxFallbackTokens = 5
)

// SearchService retrieves the most relevant knowledge chunks for a query.
// Retrieval never propagates errors: coaching must degrade gracefully
// without knowledge-base context rather than fail the whole interaction.
type SearchService struct {
	chunks   ChunkRepository
	embedder EmbeddingClient
}

func NewSearchService(chunks ChunkRepository, embedder EmbeddingClient) *SearchService {
	return &SearchService{
		chunks:   chunks,
		embedder: embedder,
	}
}

// Search returns up to limit chunks ranked most-relevant first, optionally
// restricted to the given categories. Vector search is the primary path; on
// a storage-side error it falls back to keyword matching, and on an
// embedding error it returns an empty result set.
func (s *SearchService) Search(ctx context.Context, query string, limit int, categories []string) ([]*models.SearchResult, error) {
	ctx, span := middleware.StartSpan(ctx, "Search.Query",
		attribute.String("query", query),
		attribute.Int("limit", limit),
	)
	defer span.End()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vectors, err := s.embedder.CreateEmbeddings(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		middleware.AddSpanError(ctx, err)
		log.Printf("knowledge search: query embedding failed: %v", err)
		return []*models.SearchResult{}, nil
	}

	results, err := s.chunks.VectorSearch(ctx, vectors[0], limit, categories)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		log.Printf("knowledge search: vector search failed, falling back to text: %v", err)
		return s.fallbackTextSearch(ctx, query, limit), nil
	}

	middleware.AddSpanEvent(ctx, "vector_search_done", attribute.Int("results", len(results)))
	return results, nil
}

// fallbackTextSearch matches chunks containing any sufficiently long query
// word, case-insensitively. With no usable words it returns nothing rather
// than an unfiltered scan. Results carry the sentinel similarity score.
func (s *SearchService) fallbackTextSearch(ctx context.Context, query string, limit int) []*models.SearchResult {
	var terms []string
	for _, word := range strings.Fields(query) {
		if len(word) > minTokenLen {
			terms = append(terms, word)
		}
		if len(terms) == maxFallbackTokens {
			break
		}
	}
	if len(terms) == 0 {
		return []*models.SearchResult{}
	}

	rows, err := s.chunks.TextSearch(ctx, terms, limit)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		log.Printf("knowledge search: text fallback failed: %v", err)
		return []*models.SearchResult{}
	}

	results := make([]*models.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &models.SearchResult{
			Content:    row.Content,
			Source:     row.Source,
			Category:   row.Category,
			Similarity: fallbackSimilarity,
		})
	}
	return results
}

// FormatContext renders search results into the delimited block the coaching
// prompt builder consumes verbatim. Empty input produces an empty string.
func FormatContext(results []*models.SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Source: %s | Category: %s]\n%s", r.Source, r.Category, r.Content))
	}

	return "\n---\nRELEVANT METHODOLOGY & FRAMEWORKS:\n\n" + strings.Join(parts, "\n\n---\n\n") + "\n---\n"
}
