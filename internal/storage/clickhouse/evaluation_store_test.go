package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

func TestEvaluationStore_InsertBulkAndGetByRun(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEvaluationStore(conn)
	ctx := context.Background()

	metrics := []*domain.FoldMetrics{
		{ModelName: "ridge_regression", Fold: 0, TrainRows: 40, ValRows: 10, RMSE: 0.12, MAE: 0.09, R2: 0.81},
		{ModelName: "linear_regression", Fold: 1, TrainRows: 50, ValRows: 10, RMSE: 0.11, MAE: 0.08, R2: 0.83},
		{ModelName: "linear_regression", Fold: 0, TrainRows: 40, ValRows: 10, RMSE: 0.10, MAE: 0.07, R2: 0.85},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", metrics))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "linear_regression", got[0].ModelName)
	assert.Equal(t, 0, got[0].Fold)
	assert.Equal(t, 40, got[0].TrainRows)
	assert.InDelta(t, 0.10, got[0].RMSE, 1e-12)
	assert.Equal(t, "ridge_regression", got[2].ModelName)
}

func TestEvaluationStore_GetByModelAndFailedFolds(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEvaluationStore(conn)
	ctx := context.Background()

	metrics := []*domain.FoldMetrics{
		{ModelName: "regression_tree", Fold: 0, TrainRows: 40, ValRows: 10, RMSE: 0.2},
		{ModelName: "regression_tree", Fold: 1, Failed: true, Reason: "timeout"},
		{ModelName: "linear_regression", Fold: 0, RMSE: 0.1},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", metrics))

	got, err := store.GetByModel(ctx, "run-1", "regression_tree")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Failed)
	assert.True(t, got[1].Failed)
	assert.Equal(t, "timeout", got[1].Reason)
}

func TestEvaluationStore_RunIsolationAndDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewEvaluationStore(conn)
	ctx := context.Background()

	m := []*domain.FoldMetrics{{ModelName: "linear_regression", Fold: 0, RMSE: 0.1}}
	require.NoError(t, store.InsertBulk(ctx, "run-1", m))

	// Same key under another run is fine.
	require.NoError(t, store.InsertBulk(ctx, "run-2", m))

	// Same key under the same run is a duplicate.
	err := store.InsertBulk(ctx, "run-1", m)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
