package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
// Each row carries its feature names alongside the values so the stored
// history stays readable when the canonical order changes between runs.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds feature rows. Fails entire batch on duplicate (coin, date).
func (s *FeatureStore) InsertBulk(ctx context.Context, order []string, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[domain.RecordKey]struct{})
	for _, row := range rows {
		if row == nil || row.Key.Coin == "" || row.Key.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if len(row.Vector) != len(order) {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[row.Key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[row.Key] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, row := range rows {
		exists, err := s.exists(ctx, row.Key)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO feature_rows (
			coin, date,
			feature_names, feature_values,
			aux_names, aux_values,
			flagged_zero_ratio
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, row := range rows {
		auxNames, auxValues := splitAux(row.Aux)
		err = batch.Append(
			row.Key.Coin, row.Key.Date,
			order, row.Vector,
			auxNames, auxValues,
			row.FlaggedZeroRatio,
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

// GetByCoin retrieves all feature rows for a coin, ordered by date ASC.
func (s *FeatureStore) GetByCoin(ctx context.Context, coin string) ([]*domain.FeatureRow, error) {
	query := `
		SELECT coin, date, feature_names, feature_values, aux_names, aux_values, flagged_zero_ratio
		FROM feature_rows
		WHERE coin = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("query by coin: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// GetByDateRange retrieves feature rows within [from, to] inclusive, ordered by (coin, date).
func (s *FeatureStore) GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.FeatureRow, error) {
	query := `
		SELECT coin, date, feature_names, feature_values, aux_names, aux_values, flagged_zero_ratio
		FROM feature_rows
		WHERE date >= ? AND date <= ?
		ORDER BY coin ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanFeatureRows(rows)
}

// exists checks if a row with the given key exists.
func (s *FeatureStore) exists(ctx context.Context, key domain.RecordKey) (bool, error) {
	query := `SELECT count(*) FROM feature_rows WHERE coin = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, key.Coin, key.Date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanFeatureRows(rows driver.Rows) ([]*domain.FeatureRow, error) {
	var result []*domain.FeatureRow
	for rows.Next() {
		var (
			row       domain.FeatureRow
			date      time.Time
			names     []string
			auxNames  []string
			auxValues []float64
		)
		err := rows.Scan(
			&row.Key.Coin, &date,
			&names, &row.Vector,
			&auxNames, &auxValues,
			&row.FlaggedZeroRatio,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		row.Key.Date = date.UTC()
		row.Aux = joinAux(auxNames, auxValues)
		result = append(result, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature rows: %w", err)
	}
	return result, nil
}

// splitAux flattens the aux map into parallel name/value arrays with names sorted.
func splitAux(aux map[string]float64) ([]string, []float64) {
	names := make([]string, 0, len(aux))
	for name := range aux {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = aux[name]
	}
	return names, values
}

func joinAux(names []string, values []float64) map[string]float64 {
	if len(names) == 0 {
		return nil
	}
	aux := make(map[string]float64, len(names))
	for i, name := range names {
		if i < len(values) {
			aux[name] = values[i]
		}
	}
	return aux
}
