// Package main provides the batch prediction entry point: scores every row
// of a CSV with a previously trained artifact and writes the results to a
// predictions CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/artifact"
	"crypto-liquidity-lab/internal/cleaning"
	"crypto-liquidity-lab/internal/config"
	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/features"
	"crypto-liquidity-lab/internal/inference"
	"crypto-liquidity-lab/internal/ingestion"
	"crypto-liquidity-lab/internal/logging"
	"crypto-liquidity-lab/internal/schema"
	"crypto-liquidity-lab/internal/storage"
	"crypto-liquidity-lab/internal/storage/migrations"
	pgstore "crypto-liquidity-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config file")
	input := flag.String("input", "", "Input CSV file (required)")
	artifactPath := flag.String("artifact", "", "Artifact file (default: latest in the artifact dir)")
	output := flag.String("output", "predictions.csv", "Output CSV file")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("cancelling batch prediction")
		cancel()
	}()

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

	set, err := buildFeatures(*input)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare input")
	}
	if len(set.Rows) == 0 {
		logger.Fatal().Msg("no scorable rows in input")
	}

	predictions, err := scoreRows(svc, art, set)
	if err != nil {
		logger.Fatal().Err(err).Msg("batch prediction failed")
	}

	if err := writePredictionsCSV(*output, predictions); err != nil {
		logger.Fatal().Err(err).Msg("failed to write output")
	}

	if cfg.Storage.PostgresDSN != "" {
		persistPredictions(ctx, cfg.Storage.PostgresDSN, predictions, logger)
	}

	logger.Info().
		Int("rows", len(predictions)).
		Str("output", *output).
		Msg("batch prediction completed")
}

// loadArtifact loads an explicit artifact path, or the latest artifact in
// the configured directory when no path is given.
func loadArtifact(path, dir string) (*domain.Artifact, error) {
	if path != "" {
		return artifact.Load(path)
	}
	return artifact.LoadLatest(dir)
}

// buildFeatures runs the input CSV through validation, cleaning and feature
// construction.
func buildFeatures(path string) (*domain.FeatureSet, error) {
	table, err := ingestion.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}

	ok, missing, err := schema.Validate(table, ingestion.RequiredColumns)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &cleaning.SchemaError{Missing: missing}
	}

	cleaned, err := cleaning.Clean(table, cleaning.DefaultConfig())
	if err != nil {
		return nil, err
	}

	return features.Build(&cleaned.Dataset, features.DefaultConfig()), nil
}

// scoreRows scores every feature row, preserving input order.
func scoreRows(svc *inference.Service, art *domain.Artifact, set *domain.FeatureSet) ([]*domain.Prediction, error) {
	predictions := make([]*domain.Prediction, 0, len(set.Rows))
	for _, row := range set.Rows {
		featureMap := make(map[string]float64, len(set.Order))
		for i, name := range set.Order {
			featureMap[name] = row.Vector[i]
		}

		score, err := svc.Predict(featureMap)
		if err != nil {
			return nil, fmt.Errorf("score %s/%s: %w", row.Key.Coin, row.Key.Date.Format("2006-01-02"), err)
		}

		predictions = append(predictions, &domain.Prediction{
			ID:           uuid.NewString(),
			Coin:         row.Key.Coin,
			Features:     featureMap,
			Score:        score,
			ModelName:    art.ModelName,
			ModelVersion: art.Version,
			Mode:         domain.PredictionModeBatch,
			Timestamp:    time.Now().UTC(),
		})
	}
	return predictions, nil
}

// writePredictionsCSV writes the scored rows to a CSV file.
func writePredictionsCSV(path string, predictions []*domain.Prediction) error {
	var sb strings.Builder
	sb.WriteString("id,coin,liquidity_score,model,model_version,timestamp\n")
	for _, p := range predictions {
		sb.WriteString(fmt.Sprintf("%s,%s,%.6f,%s,%s,%s\n",
			p.ID, p.Coin, p.Score, p.ModelName, p.ModelVersion,
			p.Timestamp.Format(time.RFC3339)))
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}

// persistPredictions appends the batch to the prediction history. Failures
// are logged, not fatal: the CSV output already exists.
func persistPredictions(ctx context.Context, dsn string, predictions []*domain.Prediction, logger zerolog.Logger) {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping history persistence: postgres unavailable")
		return
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Warn().Err(err).Msg("skipping history persistence: migrations failed")
		return
	}

	store := pgstore.NewPredictionStore(pool)
	persisted := 0
	for _, p := range predictions {
		if err := store.Insert(ctx, p); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			logger.Warn().Err(err).Str("id", p.ID).Msg("failed to persist prediction")
			continue
		}
		persisted++
	}
	logger.Info().Int("persisted", persisted).Msg("prediction history updated")
}
