package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"dealpilot/internal/blob"
	"dealpilot/internal/chunker"
	"dealpilot/internal/extract"
	"dealpilot/internal/middleware"
	"dealpilot/internal/models"

	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// MaxUploadSize is the upload ceiling (20 MiB).
	MaxUploadSize = 20 * 1024 * 1024
	// MinTextLength is the minimum extracted text length worth ingesting.
	MinTextLength = 50
	// EmbedBatchSize bounds how many chunk texts go into one embedding call.
	EmbedBatchSize = 20
	// InsertBatchSize bounds chunk insert statements to respect backend
	// payload limits.
	InsertBatchSize = 50
)

// IngestService drives an uploaded document through extraction, chunking,
// embedding and persistence, maintaining the source status record. One
// ingestion call is strictly sequential; concurrent calls for different
// sources share no mutable state.
type IngestService struct {
	sources   SourceRepository
	chunks    ChunkRepository
	embedder  EmbeddingClient
	blobs     BlobStore
	extractor TextExtractor
}

func NewIngestService(
	sources SourceRepository,
	chunks ChunkRepository,
	embedder EmbeddingClient,
	blobs BlobStore,
	extractor TextExtractor,
) *IngestService {
	return &IngestService{
		sources:   sources,
		chunks:    chunks,
		embedder:  embedder,
		blobs:     blobs,
		extractor: extractor,
	}
}

// UploadRequest carries one uploaded file into the pipeline.
type UploadRequest struct {
	FileName string
	MIMEType string
	Size     int64
	Data     []byte
	Category string // optional; derived from the filename when empty
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	SourceID        string `json:"source_id"`
	FileName        string `json:"file_name"`
	ChunkCount      int    `json:"chunks_count"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

// Ingest validates and processes one upload. Validation failures happen
// before any state is created; every later failure marks the source record
// failed with the reason and returns a typed *IngestError. Side effects are
// not rolled back — the source status is the authoritative state.
func (s *IngestService) Ingest(ctx context.Context, req UploadRequest) (*IngestResult, error) {
	ctx, span := middleware.StartSpan(ctx, "Ingest.Upload",
		attribute.String("file.name", req.FileName),
		attribute.String("file.type", req.MIMEType),
		attribute.Int64("file.size", req.Size),
	)
	defer span.End()

	// Validate before creating any state.
	if !extract.Supported(req.MIMEType) {
		return nil, &IngestError{Kind: FailValidation, Message: "Unsupported file type. Use PDF, DOCX, TXT, or MD files."}
	}
	if req.Size > MaxUploadSize || int64(len(req.Data)) > MaxUploadSize {
		return nil, &IngestError{Kind: FailValidation, Message: "File too large. Maximum size is 20MB."}
	}

	category := req.Category
	if category == "" {
		category = chunker.ExtractCategory(req.FileName)
	}

	// Persist the raw bytes first so a failed pipeline still leaves the
	// original file for diagnostics and re-processing.
	storagePath := blob.ObjectPath(req.FileName)
	if err := s.blobs.Put(storagePath, req.Data, req.MIMEType); err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, &IngestError{Kind: FailStorage, Message: "Failed to upload file to storage", Err: err}
	}

	source := &models.KnowledgeSource{
		FileName:     storedFileName(storagePath),
		OriginalName: req.FileName,
		FileSize:     req.Size,
		FileType:     req.MIMEType,
		Category:     category,
		Status:       models.StatusProcessing,
		StoragePath:  storagePath,
	}
	if err := s.sources.Create(ctx, source); err != nil {
		middleware.AddSpanError(ctx, err)
		return nil, &IngestError{Kind: FailStorage, Message: "Failed to save file record", Err: err}
	}
	span.SetAttributes(attribute.String("source.id", source.ID))

	// Extract plain text.
	text, err := s.extractor.Text(ctx, req.Data, req.MIMEType)
	if err != nil {
		return nil, s.fail(ctx, source.ID, FailExtraction, "Failed to extract text from file", err)
	}

	if len(strings.TrimSpace(text)) < MinTextLength {
		return nil, s.fail(ctx, source.ID, FailInsufficientContent, "File contains too little readable text", nil)
	}

	// Chunk.
	chunks := chunker.ChunkText(text, chunker.Options{
		Source:   req.FileName,
		Category: category,
	})
	if len(chunks) == 0 {
		return nil, s.fail(ctx, source.ID, FailChunking, "No chunks generated from file", nil)
	}
	middleware.AddSpanEvent(ctx, "chunked", attribute.Int("chunk_count", len(chunks)))

	// Embed in fixed-size batches. One failed batch aborts the attempt;
	// nothing is written to chunk storage until every vector exists.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, s.fail(ctx, source.ID, FailEmbedding, "Failed to generate embeddings", err)
	}
	middleware.AddSpanEvent(ctx, "embedded", attribute.Int("vector_count", len(vectors)))

	// Persist chunks in bounded insert batches.
	records := make([]*models.KnowledgeChunk, len(chunks))
	totalTokens := 0
	for i, c := range chunks {
		tokens := chunker.EstimateTokens(c.Content)
		totalTokens += tokens
		records[i] = &models.KnowledgeChunk{
			SourceID:  source.ID,
			Title:     fmt.Sprintf("%s — Chunk %d/%d", req.FileName, c.Index+1, len(chunks)),
			Content:   c.Content,
			Source:    c.Source,
			Category:  c.Category,
			Embedding: pgvector.NewVector(vectors[i]),
			Metadata: models.ChunkMetadata{
				"chunk_index":      c.Metadata.ChunkIndex,
				"total_chunks":     c.Metadata.TotalChunks,
				"char_start":       c.Metadata.CharStart,
				"char_end":         c.Metadata.CharEnd,
				"source_id":        source.ID,
				"estimated_tokens": tokens,
			},
		}
	}
	for start := 0; start < len(records); start += InsertBatchSize {
		end := start + InsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.chunks.InsertBatch(ctx, records[start:end]); err != nil {
			return nil, s.fail(ctx, source.ID, FailStorage, "Failed to store chunks: "+err.Error(), err)
		}
	}

	// Terminal state: completed, with the count and a cleared error.
	completed := models.StatusCompleted
	count := len(chunks)
	empty := ""
	if err := s.sources.Update(ctx, source.ID, &models.SourceUpdate{
		Status:       &completed,
		ChunksCount:  &count,
		ErrorMessage: &empty,
	}); err != nil {
		// Chunks are durably stored; surface as a storage failure so the
		// record is not left claiming "processing" forever.
		return nil, s.fail(ctx, source.ID, FailStorage, "Failed to finalize file record", err)
	}

	return &IngestResult{
		SourceID:        source.ID,
		FileName:        req.FileName,
		ChunkCount:      count,
		EstimatedTokens: totalTokens,
	}, nil
}

// embedAll calls the embedding service in batches of EmbedBatchSize,
// preserving input order. No batch is retried; the first failure aborts.
func (s *IngestService) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.CreateEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch returned %d vectors for %d inputs", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// fail records the terminal failed state with a user-facing message and
// returns the typed error. The update itself is best-effort: if the status
// write also fails there is nothing left to record the failure on.
func (s *IngestService) fail(ctx context.Context, sourceID string, kind FailureKind, message string, cause error) error {
	if cause != nil {
		middleware.AddSpanError(ctx, cause)
	}

	failed := models.StatusFailed
	if err := s.sources.Update(ctx, sourceID, &models.SourceUpdate{
		Status:       &failed,
		ErrorMessage: &message,
	}); err != nil {
		log.Printf("failed to mark source %s as failed: %v", sourceID, err)
	}

	return &IngestError{Kind: kind, Message: message, Err: cause}
}

// DeleteSource removes a source and everything derived from it: chunk
// records first, then the stored blob (best-effort), then the source record.
// Re-running after success reports ErrSourceNotFound.
func (s *IngestService) DeleteSource(ctx context.Context, sourceID string) error {
	ctx, span := middleware.StartSpan(ctx, "Ingest.DeleteSource",
		attribute.String("source.id", sourceID),
	)
	defer span.End()

	source, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
		}
		middleware.AddSpanError(ctx, err)
		return fmt.Errorf("failed to look up source: %w", err)
	}

	if err := s.chunks.DeleteBySource(ctx, sourceID); err != nil {
		middleware.AddSpanError(ctx, err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if source.StoragePath != "" {
		if err := s.blobs.Delete(source.StoragePath); err != nil {
			// The blob is orphaned but the knowledge base stays consistent.
			log.Printf("failed to delete blob %s: %v", source.StoragePath, err)
		}
	}

	if err := s.sources.Delete(ctx, sourceID); err != nil {
		middleware.AddSpanError(ctx, err)
		return fmt.Errorf("failed to delete source record: %w", err)
	}

	return nil
}

// storedFileName is the basename of the storage path, kept on the record the
// way the upload originally named it.
func storedFileName(storagePath string) string {
	if idx := strings.LastIndexByte(storagePath, '/'); idx >= 0 {
		return storagePath[idx+1:]
	}
	return storagePath
}
