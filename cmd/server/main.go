package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealpilot/internal/api"
	"dealpilot/internal/blob"
	"dealpilot/internal/config"
	"dealpilot/internal/db"
	"dealpilot/internal/extract"
	"dealpilot/internal/openai"
	"dealpilot/internal/repository"
	"dealpilot/internal/services"
	"dealpilot/internal/telemetry"
)

func main() {
	log.Println("Starting DealPilot knowledge service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Tracing first so every operation below is covered. A missing Jaeger
	// endpoint is not fatal.
	jaegerShutdown, err := telemetry.InitJaeger("dealpilot-knowledge", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown Jaeger: %v", err)
		}
	}()

	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	blobStore, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	log.Printf("✓ Blob store ready at %s", cfg.BlobDir)

	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	log.Println("✓ OpenAI client initialized")

	sourceRepo := repository.NewSourceRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)

	extractor := extract.New()

	ingestService := services.NewIngestService(sourceRepo, chunkRepo, openaiClient, blobStore, extractor)
	searchService := services.NewSearchService(chunkRepo, openaiClient)

	handler := api.NewHandler(ingestService, searchService, sourceRepo)
	statusFeed := api.NewStatusFeed(sourceRepo)
	router := api.NewRouter(handler, statusFeed)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server shutdown complete")
}
