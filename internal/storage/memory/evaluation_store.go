package memory

import (
	"context"
	"sort"
	"sync"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

type evalKey struct {
	runID string
	model string
	fold  int
}

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[evalKey]*domain.FoldMetrics
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[evalKey]*domain.FoldMetrics),
	}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

// InsertBulk adds fold metrics for a run. Fails entire batch on duplicate.
func (s *EvaluationStore) InsertBulk(_ context.Context, runID string, metrics []*domain.FoldMetrics) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(metrics) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[evalKey]struct{}, len(metrics))

	for _, m := range metrics {
		if m == nil || m.ModelName == "" {
			return storage.ErrInvalidInput
		}

		key := evalKey{runID: runID, model: m.ModelName, fold: m.Fold}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, m := range metrics {
		copy := *m
		s.data[evalKey{runID: runID, model: m.ModelName, fold: m.Fold}] = &copy
	}

	return nil
}

// GetByRun retrieves all fold metrics for a run, ordered by (model_name, fold).
func (s *EvaluationStore) GetByRun(_ context.Context, runID string) ([]*domain.FoldMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FoldMetrics
	for key, m := range s.data {
		if key.runID == runID {
			copy := *m
			result = append(result, &copy)
		}
	}

	sortFoldMetrics(result)
	return result, nil
}

// GetByModel retrieves fold metrics for one model within a run, ordered by fold.
func (s *EvaluationStore) GetByModel(_ context.Context, runID, modelName string) ([]*domain.FoldMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FoldMetrics
	for key, m := range s.data {
		if key.runID == runID && key.model == modelName {
			copy := *m
			result = append(result, &copy)
		}
	}

	sortFoldMetrics(result)
	return result, nil
}

func sortFoldMetrics(result []*domain.FoldMetrics) {
	sort.Slice(result, func(i, j int) bool {
		if result[i].ModelName != result[j].ModelName {
			return result[i].ModelName < result[j].ModelName
		}
		return result[i].Fold < result[j].Fold
	})
}
