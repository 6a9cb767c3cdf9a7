package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"dealpilot/internal/models"
	"dealpilot/internal/repository"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StatusFeed streams ingestion status updates for a single source over a
// websocket. Clients connect after uploading and disconnect once the source
// reaches a terminal state.
type StatusFeed struct {
	sources      SourceReader
	pollInterval time.Duration
}

func NewStatusFeed(sources SourceReader) *StatusFeed {
	return &StatusFeed{
		sources:      sources,
		pollInterval: time.Second,
	}
}

type statusMessage struct {
	SourceID     string              `json:"source_id"`
	Status       models.SourceStatus `json:"status"`
	ChunksCount  int                 `json:"chunks_count"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

func (f *StatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["id"]

	source, err := f.sources.GetByID(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Source not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load source", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed for source %s: %v", sourceID, err)
		return
	}
	defer conn.Close()

	// Reads are discarded but the pump is required to process close frames.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if done := f.send(conn, source); done {
		return
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			source, err := f.sources.GetByID(ctx, sourceID)
			if err != nil {
				// Source deleted mid-stream or DB hiccup: close the feed.
				return
			}
			if done := f.send(conn, source); done {
				return
			}
		}
	}
}

// send writes the current status and reports whether the feed is finished,
// either because the write failed or the source reached a terminal state.
func (f *StatusFeed) send(conn *websocket.Conn, source *models.KnowledgeSource) bool {
	msg := statusMessage{
		SourceID:     source.ID,
		Status:       source.Status,
		ChunksCount:  source.ChunksCount,
		ErrorMessage: source.ErrorMessage,
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		return true
	}
	return source.Status == models.StatusCompleted || source.Status == models.StatusFailed
}
