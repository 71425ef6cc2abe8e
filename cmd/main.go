package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/feedviewer/internal/api"
	"github.com/bilgisen/feedviewer/internal/cache"
	"github.com/bilgisen/feedviewer/internal/config"
	"github.com/bilgisen/feedviewer/internal/feed"
	"github.com/bilgisen/feedviewer/internal/logger"
	"github.com/bilgisen/feedviewer/internal/render"
	"github.com/bilgisen/feedviewer/internal/viewer"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting feed viewer...")

	// Viewer state store: Redis when configured, in-process otherwise
	var store viewer.Store
	if cfg.RedisURL != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis store")
		}
		store = redisStore
	} else {
		log.Info().Msg("REDIS_URL not set, keeping viewer state in memory")
		store = cache.NewMemoryStore()
	}
	defer func() {
		log.Info().Msg("Closing viewer store...")
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing viewer store")
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.DisplayTimezone).Msg("Failed to load display timezone")
	}
	renderer, err := render.New(loc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize renderer")
	}

	client := feed.NewClient(feed.ClientConfig{
		Endpoint: cfg.UpstreamEndpoint,
		APIKey:   cfg.UpstreamAPIKey,
		Count:    cfg.UpstreamCount,
		Timeout:  cfg.UpstreamTimeout,
		Logger:   logger.With("upstream"),
	})
	retriever := feed.NewRetriever(client, feed.NewParser())
	registry := viewer.NewRegistry(retriever, store, cfg.SessionTTL, logger.With("viewer"))

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.Run(sweepCtx, time.Minute)

	app := api.NewApp(cfg, api.NewHandlers(cfg, registry, retriever, renderer))

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("upstream", cfg.UpstreamEndpoint).
			Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown the server
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
