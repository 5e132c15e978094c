package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[domain.RecordKey]*domain.Record
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[domain.RecordKey]*domain.Record),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if (coin, date) exists.
func (s *SnapshotStore) Insert(_ context.Context, r *domain.Record) error {
	if r == nil || r.Coin == "" || r.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.RecordKey{Coin: r.Coin, Date: r.Date}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, records []*domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[domain.RecordKey]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.Coin == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}

		key := domain.RecordKey{Coin: r.Coin, Date: r.Date}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[domain.RecordKey{Coin: r.Coin, Date: r.Date}] = &copy
	}

	return nil
}

// GetByKey retrieves a snapshot by (coin, date). Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByKey(_ context.Context, key domain.RecordKey) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByCoin retrieves all snapshots for a coin, ordered by date ASC.
func (s *SnapshotStore) GetByCoin(_ context.Context, coin string) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Record
	for key, r := range s.data {
		if key.Coin == coin {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetByDateRange retrieves snapshots within [from, to] inclusive, ordered by (coin, date).
func (s *SnapshotStore) GetByDateRange(_ context.Context, from, to time.Time) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Record
	for _, r := range s.data {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Coin != result[j].Coin {
			return result[i].Coin < result[j].Coin
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}
