package main

import (
	"context"
	"log"
	"log/slog"

	"contractlens-backend/app"
	"contractlens-backend/config"
	"contractlens-backend/handlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	if !config.LoadDotEnv() {
		log.Printf("Warning: No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize analysis pipeline: %v", err)
	}
	defer a.Close()

	analysisHandler := handlers.NewAnalysisHandler(a.Pipeline, a.Jobs, a.Reports, func() any { return a.Status() })

	// Setup Gin router
	r := gin.Default()
	handlers.RegisterRoutes(r, analysisHandler, promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
