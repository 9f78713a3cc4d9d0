package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"townconnect-backend/internal/config"
	"townconnect-backend/internal/handlers"
	"townconnect-backend/internal/repository"
	"townconnect-backend/internal/services"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Open record store
	backend, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open record store")
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("Record store ready")

	opts := services.Options{
		JWTSecret: cfg.JWT.Secret,
		AWS:       cfg.AWS,
	}
	if cfg.AWS.S3Bucket != "" {
		presigner, err := services.NewS3Presigner(ctx, cfg.AWS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 presigner")
		}
		opts.Presigner = presigner
	} else {
		log.Warn().Msg("aws.s3_bucket not set, photo uploads disabled")
	}

	app := services.NewApp(backend, opts)
	defer app.Close()

	if _, err := app.Bootstrap(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap")
	}
	if cfg.Seed {
		if err := app.SeedDemo(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo data")
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.NewRouter(app, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown
	app.Hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
