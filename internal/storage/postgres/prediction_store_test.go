package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

func testPrediction(coin string, ts time.Time) *domain.Prediction {
	return &domain.Prediction{
		ID:     uuid.NewString(),
		Coin:   coin,
		Symbol: "BTC",
		Features: map[string]float64{
			"price":           42000,
			"liquidity_ratio": 0.00125,
		},
		Score:        0.73,
		ModelName:    "linear_regression",
		ModelVersion: "3QJmV2c",
		Mode:         domain.PredictionModeSingle,
		Timestamp:    ts,
	}
}

func TestPredictionStore_InsertAndGetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPredictionStore(pool)
	ctx := context.Background()

	p := testPrediction("bitcoin", testDay(1))
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Coin, got.Coin)
	assert.InDelta(t, 0.73, got.Score, 1e-12)
	assert.Equal(t, "linear_regression", got.ModelName)
	assert.Equal(t, domain.PredictionModeSingle, got.Mode)

	// JSONB round-trip keeps the exact feature inputs.
	require.Len(t, got.Features, 2)
	assert.InDelta(t, 42000, got.Features["price"], 1e-9)
	assert.InDelta(t, 0.00125, got.Features["liquidity_ratio"], 1e-12)
}

func TestPredictionStore_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPredictionStore(pool)
	ctx := context.Background()

	p := testPrediction("bitcoin", testDay(1))
	require.NoError(t, store.Insert(ctx, p))

	err := store.Insert(ctx, p)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestPredictionStore_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPredictionStore(pool)

	_, err := store.GetByID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPredictionStore_GetRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPredictionStore(pool)
	ctx := context.Background()

	oldest := testPrediction("bitcoin", testDay(1))
	middle := testPrediction("bitcoin", testDay(2))
	newest := testPrediction("ethereum", testDay(3))
	for _, p := range []*domain.Prediction{middle, oldest, newest} {
		require.NoError(t, store.Insert(ctx, p))
	}

	got, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newest.ID, got[0].ID)
	assert.Equal(t, middle.ID, got[1].ID)

	byCoin, err := store.GetByCoin(ctx, "bitcoin")
	require.NoError(t, err)
	require.Len(t, byCoin, 2)
	assert.Equal(t, oldest.ID, byCoin[0].ID)
}
