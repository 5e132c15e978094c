package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using ClickHouse.
type EvaluationStore struct {
	conn *Conn
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(conn *Conn) *EvaluationStore {
	return &EvaluationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// InsertBulk adds fold metrics for a run. Fails entire batch on duplicate.
func (s *EvaluationStore) InsertBulk(ctx context.Context, runID string, metrics []*domain.FoldMetrics) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(metrics) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		model string
		fold  int
	}
	seen := make(map[key]struct{})
	for _, m := range metrics {
		if m == nil || m.ModelName == "" {
			return storage.ErrInvalidInput
		}
		k := key{m.ModelName, m.Fold}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, m := range metrics {
		exists, err := s.exists(ctx, runID, m.ModelName, m.Fold)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fold_evaluations (
			run_id, model_name, fold,
			train_rows, val_rows,
			rmse, mae, r2,
			failed, reason
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range metrics {
		err = batch.Append(
			runID, m.ModelName, int64(m.Fold),
			int64(m.TrainRows), int64(m.ValRows),
			m.RMSE, m.MAE, m.R2,
			m.Failed, m.Reason,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all fold metrics for a run, ordered by (model_name, fold).
func (s *EvaluationStore) GetByRun(ctx context.Context, runID string) ([]*domain.FoldMetrics, error) {
	query := `
		SELECT model_name, fold, train_rows, val_rows, rmse, mae, r2, failed, reason
		FROM fold_evaluations
		WHERE run_id = ?
		ORDER BY model_name ASC, fold ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	return scanFoldMetrics(rows)
}

// GetByModel retrieves fold metrics for one model within a run, ordered by fold.
func (s *EvaluationStore) GetByModel(ctx context.Context, runID, modelName string) ([]*domain.FoldMetrics, error) {
	query := `
		SELECT model_name, fold, train_rows, val_rows, rmse, mae, r2, failed, reason
		FROM fold_evaluations
		WHERE run_id = ? AND model_name = ?
		ORDER BY fold ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, modelName)
	if err != nil {
		return nil, fmt.Errorf("query by model: %w", err)
	}
	defer rows.Close()

	return scanFoldMetrics(rows)
}

// exists checks if metrics for the given key exist.
func (s *EvaluationStore) exists(ctx context.Context, runID, modelName string, fold int) (bool, error) {
	query := `
		SELECT count(*) FROM fold_evaluations
		WHERE run_id = ? AND model_name = ? AND fold = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID, modelName, int64(fold)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanFoldMetrics(rows driver.Rows) ([]*domain.FoldMetrics, error) {
	var result []*domain.FoldMetrics
	for rows.Next() {
		var (
			m         domain.FoldMetrics
			fold      int64
			trainRows int64
			valRows   int64
		)
		err := rows.Scan(
			&m.ModelName, &fold, &trainRows, &valRows,
			&m.RMSE, &m.MAE, &m.R2,
			&m.Failed, &m.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fold metrics: %w", err)
		}
		m.Fold = int(fold)
		m.TrainRows = int(trainRows)
		m.ValRows = int(valRows)
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fold metrics: %w", err)
	}
	return result, nil
}
