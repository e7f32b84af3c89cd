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

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/deploy"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/imagegen"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/llm"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/retrieval"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/catalog"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/config"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/service"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/storage"
	handler "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/transport/http"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM URL: %s", cfg.LLMBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Load the work catalog
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// Initialize content store
	ctx := context.Background()
	objects, err := storage.NewMinioStore(ctx, cfg.StoreEndpoint, cfg.StoreAccessKey,
		cfg.StoreSecretKey, cfg.StoreBucket, cfg.StoreUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize content store: %v", err)
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize external clients
	generator := llm.NewGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	assets := imagegen.NewClient(cfg.ImageGenURL, cfg.ImageGenAPIKey, cfg.ImageGenTimeout)
	deployer := deploy.NewClient(cfg.DeployURL, cfg.DeployAPIKey, cfg.DeployTimeout)
	var retriever retrieval.Provider
	if cfg.RetrievalURL != "" {
		retriever = retrieval.NewClient(cfg.RetrievalURL, cfg.LLMTimeout)
	}

	// Initialize service
	svc := service.New(service.Deps{
		Store:     db,
		Catalog:   cat,
		Generator: generator,
		Assets:    assets,
		Deployer:  deployer,
		Retrieval: retriever,
		Objects:   objects,
		Policy:    policyEngine,
		Config:    cfg,
	})

	// Create HTTP server
	server := handler.NewServer(svc)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
