package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"dealpilot/internal/middleware"
)

// NewRouter wires all knowledge-base routes behind the shared middleware
// chain (tracing, panic recovery, CORS).
func NewRouter(handler *Handler, statusFeed *StatusFeed) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	r.HandleFunc("/api/health", healthCheck).Methods("GET", "OPTIONS")

	r.HandleFunc("/api/knowledge/upload", handler.UploadKnowledge).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/knowledge/delete", handler.DeleteKnowledge).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/knowledge/search", handler.SearchKnowledge).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/knowledge/sources", handler.ListSources).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws/sources/{id}", statusFeed.ServeHTTP)

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dealpilot-knowledge",
	})
}
