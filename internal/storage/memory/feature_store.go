package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[domain.RecordKey]*domain.FeatureRow
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[domain.RecordKey]*domain.FeatureRow),
	}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

// InsertBulk adds feature rows. Fails entire batch on duplicate (coin, date).
func (s *FeatureStore) InsertBulk(_ context.Context, order []string, rows []*domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[domain.RecordKey]struct{}, len(rows))

	for _, row := range rows {
		if row == nil || row.Key.Coin == "" || row.Key.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if len(row.Vector) != len(order) {
			return storage.ErrInvalidInput
		}

		if _, exists := s.data[row.Key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[row.Key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[row.Key] = struct{}{}
	}

	for _, row := range rows {
		s.data[row.Key] = copyFeatureRow(row)
	}

	return nil
}

// GetByCoin retrieves all feature rows for a coin, ordered by date ASC.
func (s *FeatureStore) GetByCoin(_ context.Context, coin string) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for key, row := range s.data {
		if key.Coin == coin {
			result = append(result, copyFeatureRow(row))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key.Date.Before(result[j].Key.Date)
	})
	return result, nil
}

// GetByDateRange retrieves feature rows within [from, to] inclusive, ordered by (coin, date).
func (s *FeatureStore) GetByDateRange(_ context.Context, from, to time.Time) ([]*domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRow
	for key, row := range s.data {
		if key.Date.Before(from) || key.Date.After(to) {
			continue
		}
		result = append(result, copyFeatureRow(row))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Key.Coin != result[j].Key.Coin {
			return result[i].Key.Coin < result[j].Key.Coin
		}
		return result[i].Key.Date.Before(result[j].Key.Date)
	})
	return result, nil
}

func copyFeatureRow(row *domain.FeatureRow) *domain.FeatureRow {
	out := &domain.FeatureRow{
		Key:              row.Key,
		Vector:           append([]float64(nil), row.Vector...),
		FlaggedZeroRatio: row.FlaggedZeroRatio,
	}
	if row.Aux != nil {
		out.Aux = make(map[string]float64, len(row.Aux))
		for k, v := range row.Aux {
			out.Aux[k] = v
		}
	}
	return out
}
