package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/api"
	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/chat"
	"github.com/studyhall-app/studyhall/internal/config"
	"github.com/studyhall-app/studyhall/internal/handlers"
	"github.com/studyhall-app/studyhall/internal/media"
	"github.com/studyhall-app/studyhall/internal/store"
	"github.com/studyhall-app/studyhall/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the durable store: PostgreSQL when configured, SQLite
	// otherwise (local development)
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer db.Close()

	// Initialize Redis (message logs, change feed, search, rate limits)
	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	// Classroom state resolver: poll loop plus control-event refresh
	resolver := chat.NewResolver(db, db, redisStore, logger, cfg.LessonPollInterval)
	go resolver.Run(ctx)

	dispatcher := chat.NewDispatcher(redisStore, redisStore, db, db, db, db, resolver, logger)
	enricher := chat.NewEnricher(redisStore)

	// Live event hub
	hub := ws.NewHub(redisStore, resolver, enricher, logger)
	go hub.Run(ctx)

	uploader := media.NewUploader(cfg.Media)
	if !uploader.Configured() {
		logger.Warn().Msg("media uploads not configured, attachments disabled")
	}

	auth := middleware.NewAuthMiddleware(db, []byte(cfg.JWTSecret))
	limiter := middleware.NewRateLimiter(redisStore.Client(), logger)

	h := handlers.NewHandler(db, redisStore, dispatcher, resolver, enricher, uploader, auth)
	wsh := handlers.NewWSHandler(hub)

	router := api.NewRouter(logger, h, wsh, auth, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting StudyHall server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	cancel()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
