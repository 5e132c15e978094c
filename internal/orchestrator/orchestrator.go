// Package orchestrator coordinates the training pipeline.
// It runs: schema validation → cleaning → features → labels → model
// selection → artifact persistence, recording intermediate products through
// the store interfaces and the audit trail.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-liquidity-lab/internal/artifact"
	"crypto-liquidity-lab/internal/audit"
	"crypto-liquidity-lab/internal/cleaning"
	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/features"
	"crypto-liquidity-lab/internal/ingestion"
	"crypto-liquidity-lab/internal/labels"
	"crypto-liquidity-lab/internal/model"
	"crypto-liquidity-lab/internal/observability"
	"crypto-liquidity-lab/internal/schema"
	"crypto-liquidity-lab/internal/selection"
	"crypto-liquidity-lab/internal/storage"
)

// Orchestrator runs the training pipeline end to end.
type Orchestrator struct {
	snapshotStore   storage.SnapshotStore
	featureStore    storage.FeatureStore
	evaluationStore storage.EvaluationStore

	auditLog *audit.Log
	metrics  *observability.Metrics
	logger   zerolog.Logger

	cleaningCfg  cleaning.Config
	featuresCfg  features.Config
	selectionCfg selection.Config
	artifactDir  string
	defaultValue float64
	candidates   []model.Estimator
}

// Options for creating an Orchestrator. Stores and the audit log are
// optional; a nil store skips that persistence step.
type Options struct {
	SnapshotStore   storage.SnapshotStore
	FeatureStore    storage.FeatureStore
	EvaluationStore storage.EvaluationStore

	AuditLog *audit.Log
	Metrics  *observability.Metrics
	Logger   zerolog.Logger

	CleaningConfig  cleaning.Config
	FeaturesConfig  features.Config
	SelectionConfig selection.Config

	// ArtifactDir is where the winning model is persisted.
	ArtifactDir string

	// DefaultValue is recorded in the artifact and substituted for missing
	// features at inference time.
	DefaultValue float64

	// Candidates overrides the default estimator set. Empty uses
	// model.DefaultCandidates().
	Candidates []model.Estimator
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.CleaningConfig == (cleaning.Config{}) {
		opts.CleaningConfig = cleaning.DefaultConfig()
	}
	if opts.FeaturesConfig == (features.Config{}) {
		opts.FeaturesConfig = features.DefaultConfig()
	}
	if len(opts.Candidates) == 0 {
		opts.Candidates = model.DefaultCandidates()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}

	return &Orchestrator{
		snapshotStore:   opts.SnapshotStore,
		featureStore:    opts.FeatureStore,
		evaluationStore: opts.EvaluationStore,
		auditLog:        opts.AuditLog,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		cleaningCfg:     opts.CleaningConfig,
		featuresCfg:     opts.FeaturesConfig,
		selectionCfg:    opts.SelectionConfig,
		artifactDir:     opts.ArtifactDir,
		defaultValue:    opts.DefaultValue,
		candidates:      opts.Candidates,
	}
}

// RunResult contains results from one training run.
type RunResult struct {
	RunID        string
	RowsIn       int
	RowsKept     int
	RowsDropped  int
	BestModel    string
	Version      string
	ArtifactPath string
	Selection    *selection.Result
}

// Run executes the training pipeline over a raw table.
func (o *Orchestrator) Run(ctx context.Context, table *schema.Table) (*RunResult, error) {
	runID := uuid.NewString()
	started := time.Now()
	result := &RunResult{RunID: runID}

	o.metrics.TrainingRunsTotal.Inc()
	o.appendAudit(audit.Entry{Event: audit.EventRunStarted, RunID: runID})

	// Phase 1: schema validation
	ok, missing, err := schema.Validate(table, ingestion.RequiredColumns)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (schema validation) failed: %w", err)
	}
	if !ok {
		return nil, &cleaning.SchemaError{Missing: missing}
	}
	result.RowsIn = len(table.Rows)
	o.logger.Info().Str("run_id", runID).Int("rows", result.RowsIn).Msg("schema validated")

	// Phase 2: cleaning
	cleaned, err := cleaning.Clean(table, o.cleaningCfg)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (cleaning) failed: %w", err)
	}
	result.RowsKept = len(cleaned.Dataset.Records)
	result.RowsDropped = len(cleaned.Drops)

	o.metrics.RowsCleaned.Add(float64(result.RowsKept))
	for _, drop := range cleaned.Drops {
		o.metrics.RowsDropped.WithLabelValues(drop.Reason).Inc()
		o.appendAudit(audit.Entry{
			Event: audit.EventRowDropped,
			RunID: runID,
			Coin:  drop.Coin,
			Date:  drop.Date,
			Details: map[string]any{
				"reason": drop.Reason,
			},
		})
	}
	o.logger.Info().
		Str("run_id", runID).
		Int("kept", result.RowsKept).
		Int("dropped", result.RowsDropped).
		Msg("cleaning completed")

	if o.snapshotStore != nil {
		if err := o.persistSnapshots(ctx, cleaned); err != nil {
			return nil, fmt.Errorf("persist snapshots: %w", err)
		}
	}

	// Phase 3: features
	set := features.Build(&cleaned.Dataset, o.featuresCfg)
	if len(set.Rows) == 0 {
		return nil, fmt.Errorf("phase 3 (features): %w", labels.ErrInsufficientData)
	}
	if o.featureStore != nil {
		if err := o.persistFeatures(ctx, set); err != nil {
			return nil, fmt.Errorf("persist features: %w", err)
		}
	}

	// Phase 4: labels
	labelSet, err := labels.Build(set)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (labels) failed: %w", err)
	}

	// Phase 5: model selection
	dates := make([]time.Time, len(set.Rows))
	for i, row := range set.Rows {
		dates[i] = row.Key.Date
	}

	selected, err := selection.SelectBest(ctx, set.Matrix(), labelSet.Scores, dates, o.candidates, o.selectionCfg)
	if err != nil {
		return nil, fmt.Errorf("phase 5 (selection) failed: %w", err)
	}
	result.BestModel = selected.BestName
	result.Selection = selected

	for _, fm := range selected.Report {
		status := "ok"
		if fm.Failed {
			status = "failed"
		}
		o.metrics.FoldsEvaluated.WithLabelValues(fm.ModelName, status).Inc()
		o.appendAudit(audit.Entry{
			Event: audit.EventFoldEvaluated,
			RunID: runID,
			Details: map[string]any{
				"model":  fm.ModelName,
				"fold":   fm.Fold,
				"rmse":   fm.RMSE,
				"failed": fm.Failed,
				"reason": fm.Reason,
			},
		})
	}
	o.metrics.CandidateRMSE.WithLabelValues(selected.BestName).Set(selected.BestScore.RMSE)

	if o.evaluationStore != nil {
		if err := o.persistEvaluations(ctx, runID, selected); err != nil {
			return nil, fmt.Errorf("persist evaluations: %w", err)
		}
	}

	// Phase 6: artifact
	path, version, err := o.persistArtifact(set, labelSet, cleaned, selected)
	if err != nil {
		return nil, fmt.Errorf("phase 6 (artifact) failed: %w", err)
	}
	result.ArtifactPath = path
	result.Version = version

	o.appendAudit(audit.Entry{
		Event: audit.EventArtifactSaved,
		RunID: runID,
		Details: map[string]any{
			"model":   selected.BestName,
			"version": version,
			"path":    path,
		},
	})

	elapsed := time.Since(started)
	o.metrics.TrainingDuration.Observe(elapsed.Seconds())
	o.metrics.LastSuccessfulTraining.SetToCurrentTime()
	o.appendAudit(audit.Entry{
		Event: audit.EventRunCompleted,
		RunID: runID,
		Details: map[string]any{
			"model":      selected.BestName,
			"version":    version,
			"duration_s": elapsed.Seconds(),
		},
	})

	o.logger.Info().
		Str("run_id", runID).
		Str("model", selected.BestName).
		Str("version", version).
		Dur("elapsed", elapsed).
		Msg("training run completed")

	return result, nil
}

// RunCSV reads the raw CSV at path and executes the pipeline over it.
func (o *Orchestrator) RunCSV(ctx context.Context, path string) (*RunResult, error) {
	table, err := ingestion.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, table)
}

func (o *Orchestrator) persistSnapshots(ctx context.Context, cleaned *cleaning.Result) error {
	records := make([]*domain.Record, len(cleaned.Dataset.Records))
	for i := range cleaned.Dataset.Records {
		records[i] = &cleaned.Dataset.Records[i]
	}
	err := o.snapshotStore.InsertBulk(ctx, records)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Re-training over already ingested data is fine.
		o.logger.Debug().Msg("snapshots already persisted")
		return nil
	}
	return err
}

func (o *Orchestrator) persistFeatures(ctx context.Context, set *domain.FeatureSet) error {
	rows := make([]*domain.FeatureRow, len(set.Rows))
	for i := range set.Rows {
		rows[i] = &set.Rows[i]
	}
	err := o.featureStore.InsertBulk(ctx, set.Order, rows)
	if errors.Is(err, storage.ErrDuplicateKey) {
		o.logger.Debug().Msg("features already persisted")
		return nil
	}
	return err
}

func (o *Orchestrator) persistEvaluations(ctx context.Context, runID string, selected *selection.Result) error {
	report := make([]*domain.FoldMetrics, len(selected.Report))
	for i := range selected.Report {
		report[i] = &selected.Report[i]
	}
	return o.evaluationStore.InsertBulk(ctx, runID, report)
}

func (o *Orchestrator) persistArtifact(
	set *domain.FeatureSet,
	labelSet *domain.LabelSet,
	cleaned *cleaning.Result,
	selected *selection.Result,
) (string, string, error) {
	params, err := selected.BestFitted.MarshalParams()
	if err != nil {
		return "", "", fmt.Errorf("marshal model params: %w", err)
	}

	from, to := cleaned.Dataset.DateRange()
	a := &domain.Artifact{
		ModelName:    selected.BestName,
		TrainedOn:    time.Now().UTC(),
		Features:     set.Order,
		Scaler:       labelSet.Scaler,
		Metrics:      selected.BestScore,
		FoldMetrics:  selected.BestFolds,
		DataFrom:     from,
		DataTo:       to,
		ModelParams:  params,
		DefaultValue: o.defaultValue,
	}

	path, err := artifact.Save(o.artifactDir, a)
	if err != nil {
		return "", "", err
	}
	return path, a.Version, nil
}

func (o *Orchestrator) appendAudit(e audit.Entry) {
	if o.auditLog == nil {
		return
	}
	if err := o.auditLog.Append(e); err != nil {
		o.logger.Warn().Err(err).Str("event", e.Event).Msg("audit append failed")
	}
}
