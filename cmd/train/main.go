// Package main provides the batch training entry point.
// Executes: schema validation → cleaning → features → labels →
// model selection → artifact + report output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crypto-liquidity-lab/internal/artifact"
	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/config"
	"crypto-liquidity-lab/internal/logging"
	"crypto-liquidity-lab/internal/orchestrator"
	"crypto-liquidity-lab/internal/reporting"
	"crypto-liquidity-lab/internal/selection"
	"crypto-liquidity-lab/internal/storage"
	chstore "crypto-liquidity-lab/internal/storage/clickhouse"
	"crypto-liquidity-lab/internal/storage/memory"
	"crypto-liquidity-lab/internal/storage/migrations"
	pgstore "crypto-liquidity-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	input := flag.String("input", "", "Input CSV file (required)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated reports")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
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

	if *input == "" {
		logger.Fatal().Msg("--input is required")
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("cancelling training run")
		cancel()
	}()

	stores, cleanup, err := createStores(ctx, cfg, *useMemory)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
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

	var defaultValue float64
	if cfg.Inference.DefaultValue != nil {
		defaultValue = *cfg.Inference.DefaultValue
	}

	orch := orchestrator.New(orchestrator.Options{
		SnapshotStore:   stores.snapshots,
		FeatureStore:    stores.features,
		EvaluationStore: stores.evaluations,
		AuditLog:        auditLog,
		Logger:          logger,
		SelectionConfig: selection.Config{
			Folds:       cfg.Training.Folds,
			MinFoldRows: cfg.Training.MinFoldRows,
			FoldTimeout: cfg.Training.FoldTimeout,
			Workers:     cfg.Training.Workers,
		},
		ArtifactDir:  cfg.Training.ArtifactDir,
		DefaultValue: defaultValue,
	})

	result, err := orch.RunCSV(ctx, *input)
	if err != nil {
		logger.Fatal().Err(err).Msg("training run failed")
	}

	art, err := artifact.Load(result.ArtifactPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", result.ArtifactPath).Msg("failed to load persisted artifact")
	}

	gen := reporting.NewGenerator()
	report := gen.Generate(result, art)
	if err := gen.WriteFiles(*outputDir, report); err != nil {
		logger.Fatal().Err(err).Msg("failed to write reports")
	}

	logger.Info().
		Str("run_id", result.RunID).
		Str("model", result.BestModel).
		Str("version", result.Version).
		Str("artifact", result.ArtifactPath).
		Int("rows_in", result.RowsIn).
		Int("rows_kept", result.RowsKept).
		Int("rows_dropped", result.RowsDropped).
		Str("reports", *outputDir).
		Msg("training completed")
}

// trainStores holds the stores the training run persists through.
type trainStores struct {
	snapshots   storage.SnapshotStore
	features    storage.FeatureStore
	evaluations storage.EvaluationStore
}

// createStores connects to PostgreSQL and ClickHouse, running migrations on
// both, or falls back to in-memory stores when DSNs are absent.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool) (*trainStores, func(), error) {
	if useMemory || cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		stores := &trainStores{
			snapshots:   memory.NewSnapshotStore(),
			features:    memory.NewFeatureStore(),
			evaluations: memory.NewEvaluationStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &trainStores{
		snapshots:   pgstore.NewSnapshotStore(pool),
		features:    chstore.NewFeatureStore(conn),
		evaluations: chstore.NewEvaluationStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
