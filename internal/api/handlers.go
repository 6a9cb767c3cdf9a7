package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dealpilot/internal/services"
)

// Handler handles HTTP requests for the knowledge base.
type Handler struct {
	ingest  IngestService
	search  SearchService
	sources SourceReader
}

func NewHandler(ingest IngestService, search SearchService, sources SourceReader) *Handler {
	return &Handler{
		ingest:  ingest,
		search:  search,
		sources: sources,
	}
}

// UploadKnowledge accepts a multipart upload (file + optional category) and
// runs it through the ingestion pipeline synchronously.
func (h *Handler) UploadKnowledge(w http.ResponseWriter, r *http.Request) {
	// A little headroom over the ingestion ceiling so the pipeline, not the
	// transport, produces the size error message.
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxUploadSize+1<<20)

	if err := r.ParseMultipartForm(services.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := h.ingest.Ingest(r.Context(), services.UploadRequest{
		FileName: header.Filename,
		MIMEType: mimeType,
		Size:     header.Size,
		Data:     data,
		Category: r.FormValue("category"),
	})
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"source_id":        result.SourceID,
		"file_name":        result.FileName,
		"chunks_count":     result.ChunkCount,
		"estimated_tokens": result.EstimatedTokens,
	})
}

// DeleteKnowledge removes a source and all chunks derived from it.
func (h *Handler) DeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceID string `json:"source_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceID == "" {
		writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}

	if err := h.ingest.DeleteSource(r.Context(), req.SourceID); err != nil {
		if errors.Is(err, services.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, "Source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete knowledge source")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// SearchKnowledge answers GET /api/knowledge/search?q=...&limit=...&categories=a,b.
func (h *Handler) SearchKnowledge(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := services.DefaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var categories []string
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
	}

	results, err := h.search.Search(r.Context(), query, limit, categories)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"context": services.FormatContext(results),
	})
}

// ListSources serves the dashboard listing, newest first.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	sources, err := h.sources.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list knowledge sources")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"limit":   limit,
		"offset":  offset,
	})
}

// writeIngestError maps pipeline failures onto HTTP statuses: anything the
// user can fix by re-uploading is a 400, the rest are 500s.
func writeIngestError(w http.ResponseWriter, err error) {
	var ingestErr *services.IngestError
	if errors.As(err, &ingestErr) {
		status := http.StatusInternalServerError
		if ingestErr.UserCorrectable() {
			status = http.StatusBadRequest
		}
		writeError(w, status, ingestErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "An unexpected error occurred during processing")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
