package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotInsertQuery = `
	INSERT INTO market_snapshots (
		coin, symbol, date,
		price, change_1h, change_24h, change_7d,
		volume_24h, market_cap, liquidity_ratio, price_change_24h
	) VALUES (
		$1, $2, $3,
		$4, $5, $6, $7,
		$8, $9, $10, $11
	)
`

const snapshotSelectColumns = `
	coin, symbol, date,
	price, change_1h, change_24h, change_7d,
	volume_24h, market_cap, liquidity_ratio, price_change_24h
`

// Insert adds a new snapshot. Returns ErrDuplicateKey if (coin, date) exists.
func (s *SnapshotStore) Insert(ctx context.Context, r *domain.Record) error {
	if r == nil || r.Coin == "" || r.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, snapshotInsertQuery,
		r.Coin, r.Symbol, r.Date,
		r.Price, r.Change1h, r.Change24h, r.Change7d,
		r.Volume24h, r.MarketCap, r.LiquidityRatio, r.PriceChange24h,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(ctx context.Context, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if r == nil || r.Coin == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}

		_, err := tx.Exec(ctx, snapshotInsertQuery,
			r.Coin, r.Symbol, r.Date,
			r.Price, r.Change1h, r.Change24h, r.Change7d,
			r.Volume24h, r.MarketCap, r.LiquidityRatio, r.PriceChange24h,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot %s/%s: %w", r.Coin, r.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByKey retrieves a snapshot by (coin, date). Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByKey(ctx context.Context, key domain.RecordKey) (*domain.Record, error) {
	query := `SELECT ` + snapshotSelectColumns + `
		FROM market_snapshots
		WHERE coin = $1 AND date = $2`

	row := s.pool.QueryRow(ctx, query, key.Coin, key.Date)
	rec, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot by key: %w", err)
	}
	return rec, nil
}

// GetByCoin retrieves all snapshots for a coin, ordered by date ASC.
func (s *SnapshotStore) GetByCoin(ctx context.Context, coin string) ([]*domain.Record, error) {
	query := `SELECT ` + snapshotSelectColumns + `
		FROM market_snapshots
		WHERE coin = $1
		ORDER BY date ASC`

	rows, err := s.pool.Query(ctx, query, coin)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by coin: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// GetByDateRange retrieves snapshots within [from, to] inclusive, ordered by (coin, date).
func (s *SnapshotStore) GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.Record, error) {
	query := `SELECT ` + snapshotSelectColumns + `
		FROM market_snapshots
		WHERE date >= $1 AND date <= $2
		ORDER BY coin ASC, date ASC`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by date range: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

func scanSnapshot(row pgx.Row) (*domain.Record, error) {
	var r domain.Record
	err := row.Scan(
		&r.Coin, &r.Symbol, &r.Date,
		&r.Price, &r.Change1h, &r.Change24h, &r.Change7d,
		&r.Volume24h, &r.MarketCap, &r.LiquidityRatio, &r.PriceChange24h,
	)
	if err != nil {
		return nil, err
	}
	r.Date = r.Date.UTC()
	return &r, nil
}

func collectSnapshots(rows pgx.Rows) ([]*domain.Record, error) {
	var result []*domain.Record
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}
