package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

// PredictionStore is an in-memory implementation of storage.PredictionStore.
type PredictionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Prediction // keyed by prediction id
}

// NewPredictionStore creates a new in-memory prediction store.
func NewPredictionStore() *PredictionStore {
	return &PredictionStore{
		data: make(map[string]*domain.Prediction),
	}
}

// Compile-time interface check.
var _ storage.PredictionStore = (*PredictionStore)(nil)

// Insert adds a new prediction. Returns ErrDuplicateKey if id exists.
func (s *PredictionStore) Insert(_ context.Context, p *domain.Prediction) error {
	if p == nil || p.ID == "" || p.Coin == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.ID] = copyPrediction(p)
	return nil
}

// GetByID retrieves a prediction by its ID. Returns ErrNotFound if not exists.
func (s *PredictionStore) GetByID(_ context.Context, id string) (*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyPrediction(p), nil
}

// GetByCoin retrieves all predictions for a coin, ordered by timestamp ASC.
func (s *PredictionStore) GetByCoin(_ context.Context, coin string) ([]*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Prediction
	for _, p := range s.data {
		if p.Coin == coin {
			result = append(result, copyPrediction(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetRecent retrieves the most recent predictions, ordered by timestamp DESC.
func (s *PredictionStore) GetRecent(_ context.Context, limit int) ([]*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Prediction, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, copyPrediction(p))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.After(result[j].Timestamp)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyPrediction(p *domain.Prediction) *domain.Prediction {
	out := *p
	if p.Features != nil {
		out.Features = make(map[string]float64, len(p.Features))
		for k, v := range p.Features {
			out.Features[k] = v
		}
	}
	return &out
}
