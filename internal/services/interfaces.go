package services

import (
	"context"

	"dealpilot/internal/models"
)

// Interfaces are declared here, where they are consumed, not where they are
// implemented. The services only name the methods they actually call, so
// tests can substitute small fakes.

// SourceRepository defines what the pipeline needs from source storage.
type SourceRepository interface {
	Create(ctx context.Context, source *models.KnowledgeSource) error
	GetByID(ctx context.Context, id string) (*models.KnowledgeSource, error)
	Update(ctx context.Context, id string, update *models.SourceUpdate) error
	Delete(ctx context.Context, id string) error
}

// ChunkRepository defines what the pipeline needs from chunk storage.
type ChunkRepository interface {
	InsertBatch(ctx context.Context, chunks []*models.KnowledgeChunk) error
	DeleteBySource(ctx context.Context, sourceID string) error
	VectorSearch(ctx context.Context, queryVector []float32, limit int, categories []string) ([]*models.SearchResult, error)
	TextSearch(ctx context.Context, terms []string, limit int) ([]*models.SearchResult, error)
}

// EmbeddingClient maps texts to vectors, one per input, order-preserving.
type EmbeddingClient interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// BlobStore persists raw uploaded files.
type BlobStore interface {
	Put(path string, data []byte, contentType string) error
	Delete(path string) error
}

// TextExtractor converts raw file bytes into plain text for a MIME type.
type TextExtractor interface {
	Text(ctx context.Context, data []byte, mimeType string) (string, error)
}
