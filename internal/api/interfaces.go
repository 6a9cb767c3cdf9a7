package api

import (
	"context"

	"dealpilot/internal/models"
	"dealpilot/internal/services"
)

// Service interfaces live here, in the consuming package. Handlers only name
// the methods they call, so tests can swap in fakes.

// IngestService drives uploads through the ingestion pipeline and removes
// sources again.
type IngestService interface {
	Ingest(ctx context.Context, req services.UploadRequest) (*services.IngestResult, error)
	DeleteSource(ctx context.Context, sourceID string) error
}

// SearchService answers retrieval queries against the knowledge base.
type SearchService interface {
	Search(ctx context.Context, query string, limit int, categories []string) ([]*models.SearchResult, error)
}

// SourceReader serves the dashboard listing and the status feed.
type SourceReader interface {
	GetByID(ctx context.Context, id string) (*models.KnowledgeSource, error)
	List(ctx context.Context, limit, offset int) ([]*models.KnowledgeSource, error)
}
