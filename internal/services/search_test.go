package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealpilot/internal/models"
)

func TestSearchReturnsVectorResults(t *testing.T) {
	chunks := &fakeChunkRepo{
		vectorResults: []*models.SearchResult{
			{Content: "Mirror the last three words.", Source: "Never Split the Difference.pdf", Category: "negotiation", Similarity: 0.91},
			{Content: "Label the emotion you observe.", Source: "Never Split the Difference.pdf", Category: "negotiation", Similarity: 0.87},
		},
	}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	results, err := svc.Search(context.Background(), "how do I handle a price objection", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0.91, results[0].Similarity)
	assert.Equal(t, 5, chunks.lastLimit)
}

func TestSearchDefaultsLimit(t *testing.T) {
	chunks := &fakeChunkRepo{}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	_, err := svc.Search(context.Background(), "discovery questions", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSearchLimit, chunks.lastLimit)
}

func TestSearchPassesCategoryFilter(t *testing.T) {
	chunks := &fakeChunkRepo{}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	_, err := svc.Search(context.Background(), "budget questions", 3, []string{"meddic", "framework"})
	require.NoError(t, err)
	assert.Equal(t, []string{"meddic", "framework"}, chunks.lastCats)
}

func TestSearchEmbeddingFailureReturnsEmpty(t *testing.T) {
	chunks := &fakeChunkRepo{}
	svc := NewSearchService(chunks, &fakeEmbedder{err: errors.New("401 unauthorized")})

	results, err := svc.Search(context.Background(), "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestSearchFallsBackToTextOnVectorError(t *testing.T) {
	chunks := &fakeChunkRepo{
		vectorErr: errors.New("pgvector extension missing"),
		textResults: []*models.SearchResult{
			{Content: "Budget questions come before timeline questions.", Source: "guide.txt", Category: "general"},
		},
	}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	results, err := svc.Search(context.Background(), "when should budget questions happen", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Fallback results carry the sentinel score, not a real distance.
	assert.Equal(t, 0.5, results[0].Similarity)

	// Words of three characters or fewer are not search terms.
	assert.Equal(t, []string{"when", "should", "budget", "questions", "happen"}, chunks.lastTerms)
}

func TestSearchFallbackCapsTerms(t *testing.T) {
	chunks := &fakeChunkRepo{vectorErr: errors.New("down")}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	_, err := svc.Search(context.Background(), "alpha bravo charlie delta echo foxtrot golf", 5, nil)
	require.NoError(t, err)
	assert.Len(t, chunks.lastTerms, 5)
}

func TestSearchFallbackNoUsableTerms(t *testing.T) {
	chunks := &fakeChunkRepo{vectorErr: errors.New("down")}
	svc := NewSearchService(chunks, &fakeEmbedder{})

	// Every word is at or below the length floor, so the fallback returns
	// nothing instead of scanning the whole table.
	results, err := svc.Search(context.Background(), "how do I ask", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Nil(t, chunks.lastTerms)
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
	assert.Equal(t, "", FormatContext([]*models.SearchResult{}))
}

func TestFormatContextBlocks(t *testing.T) {
	results := []*models.SearchResult{
		{Content: "Mirror their words.", Source: "negotiation.pdf", Category: "negotiation", Similarity: 0.9},
		{Content: "Quantify the pain.", Source: "meddic.txt", Category: "meddic", Similarity: 0.8},
	}

	out := FormatContext(results)

	assert.True(t, strings.HasPrefix(out, "\n---\nRELEVANT METHODOLOGY & FRAMEWORKS:\n\n"))
	assert.True(t, strings.HasSuffix(out, "\n---\n"))
	assert.Contains(t, out, "[Source: negotiation.pdf | Category: negotiation]\nMirror their words.")
	assert.Contains(t, out, "[Source: meddic.txt | Category: meddic]\nQuantify the pain.")
	assert.Equal(t, 1, strings.Count(out, "\n\n---\n\n"))
}
