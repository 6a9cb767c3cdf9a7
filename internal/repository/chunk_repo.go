package repository

import (
	"context"
	"fmt"

	"dealpilot/internal/models"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// ChunkRepositoryImpl handles vector operations on knowledge chunks using
// pgvector.
type ChunkRepositoryImpl struct {
	db *gorm.DB
}

// NewChunkRepository creates a new chunk repository.
func NewChunkRepository(db *gorm.DB) *ChunkRepositoryImpl {
	return &ChunkRepositoryImpl{db: db}
}

// InsertBatch stores a batch of chunks in one statement. Callers bound the
// batch size; this method does not split it further.
func (r *ChunkRepositoryImpl) InsertBatch(ctx context.Context, chunks []*models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(chunks).Error; err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// DeleteBySource removes every chunk belonging to a source. Safe to re-run;
// deleting zero rows is not an error.
func (r *ChunkRepositoryImpl) DeleteBySource(ctx context.Context, sourceID string) error {
	err := r.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Delete(&models.KnowledgeChunk{}).Error

	if err != nil {
		return fmt.Errorf("failed to delete chunks for source %s: %w", sourceID, err)
	}
	return nil
}

// CountBySource returns the number of stored chunks for a source.
func (r *ChunkRepositoryImpl) CountBySource(ctx context.Context, sourceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.KnowledgeChunk{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error

	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// VectorSearch ranks chunks by cosine similarity to the query vector,
// optionally restricted to the given categories. The <=> operator from
// pgvector computes cosine distance; similarity is 1 - distance.
func (r *ChunkRepositoryImpl) VectorSearch(ctx context.Context, queryVector []float32, limit int, categories []string) ([]*models.SearchResult, error) {
	vec := pgvector.NewVector(queryVector)

	var results []*models.SearchResult

	// Raw SQL since GORM has no native vector support.
	query := `
		SELECT
			content,
			source,
			category,
			1 - (embedding <=> ?) AS similarity
		FROM knowledge_chunks
	`
	args := []interface{}{vec}

	if len(categories) > 0 {
		query += ` WHERE category = ANY(?)`
		args = append(args, pq.StringArray(categories))
	}

	query += `
		ORDER BY embedding <=> ?
		LIMIT ?
	`
	args = append(args, vec, limit)

	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}

	return results, nil
}

// TextSearch is the fallback path: case-insensitive substring match against
// any of the given terms, capped at limit. No distance is computed, so rows
// come back without a similarity score.
func (r *ChunkRepositoryImpl) TextSearch(ctx context.Context, terms []string, limit int) ([]*models.SearchResult, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	patterns := make([]string, len(terms))
	for i, term := range terms {
		patterns[i] = "%" + term + "%"
	}

	var results []*models.SearchResult
	err := r.db.WithContext(ctx).Raw(`
		SELECT content, source, category, 0 AS similarity
		FROM knowledge_chunks
		WHERE content ILIKE ANY(?)
		LIMIT ?
	`, pq.StringArray(patterns), limit).Scan(&results).Error

	if err != nil {
		return nil, fmt.Errorf("failed to perform text search: %w", err)
	}

	return results, nil
}
