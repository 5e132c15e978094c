package storage

import (
	"context"
	"time"

	"crypto-liquidity-lab/internal/domain"
)

// SnapshotStore provides access to cleaned market snapshots.
type SnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if (coin, date) exists.
	Insert(ctx context.Context, r *domain.Record) error

	// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.Record) error

	// GetByKey retrieves a snapshot by (coin, date). Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, key domain.RecordKey) (*domain.Record, error)

	// GetByCoin retrieves all snapshots for a coin, ordered by date ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.Record, error)

	// GetByDateRange retrieves snapshots within [from, to] (inclusive),
	// ordered by (coin, date) ASC.
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Record, error)
}

// FeatureStore provides access to engineered feature rows.
type FeatureStore interface {
	// InsertBulk adds feature rows with their column order. Fails entire batch
	// on duplicate (coin, date).
	InsertBulk(ctx context.Context, order []string, rows []*domain.FeatureRow) error

	// GetByCoin retrieves all feature rows for a coin, ordered by date ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.FeatureRow, error)

	// GetByDateRange retrieves feature rows within [from, to] (inclusive),
	// ordered by (coin, date) ASC.
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.FeatureRow, error)
}

// EvaluationStore provides access to per-fold evaluation metrics of training runs.
type EvaluationStore interface {
	// InsertBulk adds fold metrics for a training run. Fails entire batch on
	// duplicate (run_id, model_name, fold).
	InsertBulk(ctx context.Context, runID string, metrics []*domain.FoldMetrics) error

	// GetByRun retrieves all fold metrics for a run, ordered by (model_name, fold) ASC.
	GetByRun(ctx context.Context, runID string) ([]*domain.FoldMetrics, error)

	// GetByModel retrieves fold metrics for one model within a run, ordered by fold ASC.
	GetByModel(ctx context.Context, runID, modelName string) ([]*domain.FoldMetrics, error)
}

// PredictionStore provides access to the prediction history.
type PredictionStore interface {
	// Insert adds a new prediction. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, p *domain.Prediction) error

	// GetByID retrieves a prediction by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Prediction, error)

	// GetByCoin retrieves all predictions for a coin, ordered by timestamp ASC.
	GetByCoin(ctx context.Context, coin string) ([]*domain.Prediction, error)

	// GetRecent retrieves the most recent predictions, ordered by timestamp DESC.
	// A limit <= 0 returns all predictions.
	GetRecent(ctx context.Context, limit int) ([]*domain.Prediction, error)
}
