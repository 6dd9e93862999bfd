package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stwalsh4118/geomark/internal/config"
	"github.com/stwalsh4118/geomark/internal/handlers"
	"github.com/stwalsh4118/geomark/internal/logger"
	"github.com/stwalsh4118/geomark/internal/middleware"
	"github.com/stwalsh4118/geomark/internal/observability"
	"github.com/stwalsh4118/geomark/internal/services"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting geomark API", map[string]interface{}{
		"version":          handlers.APIVersion,
		"environment":      cfg.Server.Env,
		"port":             cfg.Server.Port,
		"max_import_bytes": cfg.Import.MaxBytes,
		"metrics_enabled":  cfg.Metrics.Enabled,
	})

	var collector *observability.Collector
	if cfg.Metrics.Enabled {
		collector, err = observability.NewCollector(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatal("Failed to register metrics", err, nil)
		}
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, "/health", cfg.Metrics.Path))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	if collector != nil {
		router.Use(collector.Middleware())
	}

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(cfg.Server.Env, cfg.Import.MaxBytes)
	router.GET("/health", healthHandler.Health)
	router.GET("/api/v1/info", healthHandler.Info)

	if collector != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(collector.Handler()))
	}

	// Initialize service layer and handlers. Collector methods are no-ops
	// when metrics are disabled.
	geojsonService := services.NewGeoJSONService(log, collector)
	geojsonHandler := handlers.NewGeoJSONHandler(geojsonService, cfg.Export.Filename, cfg.Import.MaxBytes)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		geo := v1.Group("/geojson", middleware.BodyLimit(cfg.Import.MaxBytes))
		{
			geo.POST("/import", geojsonHandler.Import)
			geo.POST("/export", geojsonHandler.Export)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
