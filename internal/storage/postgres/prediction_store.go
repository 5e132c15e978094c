package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// PredictionStore implements storage.PredictionStore using PostgreSQL.
// Feature vectors are stored as JSONB so the history keeps the exact
// inputs each score was produced from.
type PredictionStore struct {
	pool *Pool
}

// NewPredictionStore creates a new PredictionStore.
func NewPredictionStore(pool *Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PredictionStore = (*PredictionStore)(nil)

const predictionSelectColumns = `
	id, coin, symbol, features, score,
	model_name, model_version, mode, created_at
`

// Insert adds a new prediction. Returns ErrDuplicateKey if id exists.
func (s *PredictionStore) Insert(ctx context.Context, p *domain.Prediction) error {
	if p == nil || p.ID == "" || p.Coin == "" {
		return storage.ErrInvalidInput
	}

	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}

	query := `
		INSERT INTO predictions (
			id, coin, symbol, features, score,
			model_name, model_version, mode, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Coin, p.Symbol, features, p.Score,
		p.ModelName, p.ModelVersion, p.Mode, p.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// GetByID retrieves a prediction by its ID. Returns ErrNotFound if not exists.
func (s *PredictionStore) GetByID(ctx context.Context, id string) (*domain.Prediction, error) {
	query := `SELECT ` + predictionSelectColumns + `
		FROM predictions
		WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPrediction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get prediction by id: %w", err)
	}
	return p, nil
}

// GetByCoin retrieves all predictions for a coin, ordered by timestamp ASC.
func (s *PredictionStore) GetByCoin(ctx context.Context, coin string) ([]*domain.Prediction, error) {
	query := `SELECT ` + predictionSelectColumns + `
		FROM predictions
		WHERE coin = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("query predictions by coin: %w", err)
	}
	defer rows.Close()

	return collectPredictions(rows)
}

// GetRecent retrieves the most recent predictions, ordered by timestamp DESC.
func (s *PredictionStore) GetRecent(ctx context.Context, limit int) ([]*domain.Prediction, error) {
	query := `SELECT ` + predictionSelectColumns + `
		FROM predictions
		ORDER BY created_at DESC, id DESC`

	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent predictions: %w", err)
	}
	defer rows.Close()

	return collectPredictions(rows)
}

func scanPrediction(row pgx.Row) (*domain.Prediction, error) {
	var (
		p        domain.Prediction
		features []byte
	)
	err := row.Scan(
		&p.ID, &p.Coin, &p.Symbol, &features, &p.Score,
		&p.ModelName, &p.ModelVersion, &p.Mode, &p.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("unmarshal features: %w", err)
		}
	}
	p.Timestamp = p.Timestamp.UTC()
	return &p, nil
}

func collectPredictions(rows pgx.Rows) ([]*domain.Prediction, error) {
	var result []*domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return result, nil
}
