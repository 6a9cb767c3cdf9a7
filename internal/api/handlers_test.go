package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealpilot/internal/models"
	"dealpilot/internal/repository"
	"dealpilot/internal/services"
)

type fakeIngest struct {
	result    *services.IngestResult
	ingestErr error
	gotReq    services.UploadRequest

	deleteErr error
	deletedID string
}

func (f *fakeIngest) Ingest(ctx context.Context, req services.UploadRequest) (*services.IngestResult, error) {
	f.gotReq = req
	return f.result, f.ingestErr
}

func (f *fakeIngest) DeleteSource(ctx context.Context, sourceID string) error {
	f.deletedID = sourceID
	return f.deleteErr
}

type fakeSearch struct {
	results []*models.SearchResult
	err     error
	gotQ    string
	gotLim  int
	gotCats []string
}

func (f *fakeSearch) Search(ctx context.Context, query string, limit int, categories []string) ([]*models.SearchResult, error) {
	f.gotQ = query
	f.gotLim = limit
	f.gotCats = categories
	return f.results, f.err
}

type fakeReader struct {
	mu   sync.Mutex
	byID map[string]*models.KnowledgeSource
	list []*models.KnowledgeSource
	err  error
}

func (f *fakeReader) GetByID(ctx context.Context, id string) (*models.KnowledgeSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	source, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *source
	return &clone, nil
}

func (f *fakeReader) set(source *models.KnowledgeSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *source
	f.byID[source.ID] = &clone
}

func (f *fakeReader) List(ctx context.Context, limit, offset int) ([]*models.KnowledgeSource, error) {
	return f.list, f.err
}

func setupRouter(ingest *fakeIngest, search *fakeSearch, reader *fakeReader) http.Handler {
	handler := NewHandler(ingest, search, reader)
	return NewRouter(handler, NewStatusFeed(reader))
}

func multipartUpload(t *testing.T, fileName, contentType, category string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if category != "" {
		require.NoError(t, w.WriteField("category", category))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestUploadKnowledge(t *testing.T) {
	ingest := &fakeIngest{result: &services.IngestResult{
		SourceID:        "2QzXabc",
		FileName:        "guide.txt",
		ChunkCount:      3,
		EstimatedTokens: 420,
	}}
	router := setupRouter(ingest, &fakeSearch{}, &fakeReader{})

	body, contentType := multipartUpload(t, "guide.txt", "text/plain", "meddic", []byte("some sales guidance text"))
	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "2QzXabc", resp["source_id"])
	assert.Equal(t, float64(3), resp["chunks_count"])
	assert.Equal(t, float64(420), resp["estimated_tokens"])

	assert.Equal(t, "guide.txt", ingest.gotReq.FileName)
	assert.Equal(t, "text/plain", ingest.gotReq.MIMEType)
	assert.Equal(t, "meddic", ingest.gotReq.Category)
	assert.Equal(t, []byte("some sales guidance text"), ingest.gotReq.Data)
}

func TestUploadKnowledgeNoFile(t *testing.T) {
	router := setupRouter(&fakeIngest{}, &fakeSearch{}, &fakeReader{})

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("category", "general"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file provided")
}

func TestUploadKnowledgeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "validation failure is the client's fault",
			err:        &services.IngestError{Kind: services.FailValidation, Message: "Unsupported file type. Use PDF, DOCX, TXT, or MD files."},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Unsupported file type. Use PDF, DOCX, TXT, or MD files.",
		},
		{
			name:       "insufficient content is the client's fault",
			err:        &services.IngestError{Kind: services.FailInsufficientContent, Message: "File contains too little readable text"},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "File contains too little readable text",
		},
		{
			name:       "embedding failure is ours",
			err:        &services.IngestError{Kind: services.FailEmbedding, Message: "Failed to generate embeddings"},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to generate embeddings",
		},
		{
			name:       "untyped failure is ours",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "An unexpected error occurred during processing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&fakeIngest{ingestErr: tt.err}, &fakeSearch{}, &fakeReader{})

			body, contentType := multipartUpload(t, "file.txt", "text/plain", "", []byte("content"))
			req := httptest.NewRequest(http.MethodPost, "/api/knowledge/upload", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
		})
	}
}

func TestDeleteKnowledge(t *testing.T) {
	ingest := &fakeIngest{}
	router := setupRouter(ingest, &fakeSearch{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/delete", strings.NewReader(`{"source_id":"2QzXabc"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2QzXabc", ingest.deletedID)
}

func TestDeleteKnowledgeNotFound(t *testing.T) {
	ingest := &fakeIngest{deleteErr: fmt.Errorf("%w: 2QzXabc", services.ErrSourceNotFound)}
	router := setupRouter(ingest, &fakeSearch{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/delete", strings.NewReader(`{"source_id":"2QzXabc"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteKnowledgeMissingID(t *testing.T) {
	router := setupRouter(&fakeIngest{}, &fakeSearch{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/knowledge/delete", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchKnowledge(t *testing.T) {
	search := &fakeSearch{results: []*models.SearchResult{
		{Content: "Mirror their words.", Source: "negotiation.pdf", Category: "negotiation", Similarity: 0.9},
	}}
	router := setupRouter(&fakeIngest{}, search, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/search?q=price+objection&limit=3&categories=negotiation,meddic", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "price objection", search.gotQ)
	assert.Equal(t, 3, search.gotLim)
	assert.Equal(t, []string{"negotiation", "meddic"}, search.gotCats)

	var resp struct {
		Query   string                 `json:"query"`
		Results []*models.SearchResult `json:"results"`
		Context string                 `json:"context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Contains(t, resp.Context, "RELEVANT METHODOLOGY & FRAMEWORKS")
}

func TestSearchKnowledgeMissingQuery(t *testing.T) {
	router := setupRouter(&fakeIngest{}, &fakeSearch{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/search", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSources(t *testing.T) {
	reader := &fakeReader{list: []*models.KnowledgeSource{
		{ID: "2QzXb", OriginalName: "b.txt", Status: models.StatusCompleted},
		{ID: "2QzXa", OriginalName: "a.txt", Status: models.StatusFailed},
	}}
	router := setupRouter(&fakeIngest{}, &fakeSearch{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/sources", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []*models.KnowledgeSource `json:"sources"`
		Limit   int                       `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Sources, 2)
	assert.Equal(t, 50, resp.Limit)
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(&fakeIngest{}, &fakeSearch{}, &fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
