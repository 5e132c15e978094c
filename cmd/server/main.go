// Package main provides the prediction service: REST scoring endpoints, a
// websocket feed of prediction events, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crypto-liquidity-lab/internal/artifact"
	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/config"
	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/inference"
	"crypto-liquidity-lab/internal/logging"
	"crypto-liquidity-lab/internal/server"
	"crypto-liquidity-lab/internal/storage"
	"crypto-liquidity-lab/internal/storage/memory"
	"crypto-liquidity-lab/internal/storage/migrations"
	pgstore "crypto-liquidity-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	artifactPath := flag.String("artifact", "", "Artifact file (default: latest in the artifact dir)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory prediction history instead of PostgreSQL")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	art, err := loadArtifact(*artifactPath, cfg.Training.ArtifactDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load artifact")
	}
	logger.Info().Str("model", art.ModelName).Str("version", art.Version).Msg("artifact loaded")

	svc, err := inference.New(art, logger, inference.Config{
		Strict:  cfg.Inference.Strict,
		Default: cfg.Inference.DefaultValue,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build inference service")
	}

	predictions, cleanup, err := createPredictionStore(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create prediction store")
	}
	defer cleanup()

	var auditLog *audit.Log
	if cfg.Training.AuditLogPath != "" {
		auditLog, err = audit.Open(cfg.Training.AuditLogPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open audit log")
		}
		defer auditLog.Close()
	}

	srv := server.New(server.Options{
		Service:         svc,
		PredictionStore: predictions,
		AuditLog:        auditLog,
		Logger:          logger,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("prediction service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	logger.Info().Msg("shutdown complete")
}

// loadArtifact loads an explicit artifact path, or the latest artifact in
// the configured directory when no path is given.
func loadArtifact(path, dir string) (*domain.Artifact, error) {
	if path != "" {
		return artifact.Load(path)
	}
	return artifact.LoadLatest(dir)
}

// createPredictionStore connects the prediction history to PostgreSQL, or
// falls back to an in-memory store when no DSN is configured.
func createPredictionStore(ctx context.Context, cfg *config.Config, useMemory bool) (storage.PredictionStore, func(), error) {
	if useMemory || cfg.Storage.PostgresDSN == "" {
		return memory.NewPredictionStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	return pgstore.NewPredictionStore(pool), pool.Close, nil
}
