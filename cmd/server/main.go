package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/linksync/internal/api"
	"github.com/andresuchdata/linksync/internal/cache"
	"github.com/andresuchdata/linksync/internal/config"
	"github.com/andresuchdata/linksync/internal/repository"
	"github.com/andresuchdata/linksync/internal/repository/postgres"
	"github.com/andresuchdata/linksync/internal/service"
	"github.com/andresuchdata/linksync/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	runRepo := repository.NewMemoryRunRepository()
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.EnsureSchema(context.Background()); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare database schema")
		}
		runRepo = postgres.NewRunRepository(db)
	}

	runCache, err := cache.NewRunCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Run cache unavailable, continuing without it")
		runCache = cache.NewNoopRunCache()
	}

	// Initialize services
	syncService := service.NewSyncService(runRepo, runCache, service.NewSyncerFactory(cfg.Storage, cfg.Fetch))

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{SyncService: syncService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Storage.Backend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Sync runs are not cancellable; let in-flight ones finish.
	logger.Log.Info().Msg("Waiting for running syncs")
	syncService.Wait()

	logger.Log.Info().Msg("Server exiting")
}
