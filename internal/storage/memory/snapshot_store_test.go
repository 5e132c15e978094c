package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-liquidity-lab/internal/domain"
	"crypto-liquidity-lab/internal/storage"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	rec := &domain.Record{
		Coin:           "bitcoin",
		Symbol:         "BTC",
		Date:           day(1),
		Price:          42000,
		Volume24h:      1_000_000,
		MarketCap:      800_000_000,
		LiquidityRatio: 0.00125,
	}

	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByKey(ctx, domain.RecordKey{Coin: "bitcoin", Date: day(1)})
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.Price != 42000 {
		t.Errorf("Price mismatch: got %f, want %f", got.Price, 42000.0)
	}

	// Stored copy must be isolated from the caller's struct.
	rec.Price = 0
	got, err = store.GetByKey(ctx, domain.RecordKey{Coin: "bitcoin", Date: day(1)})
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.Price != 42000 {
		t.Errorf("stored record mutated through caller pointer")
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	rec := &domain.Record{Coin: "bitcoin", Date: day(1), Price: 42000}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, rec)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_InsertBulkIntraBatchDuplicate(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	records := []*domain.Record{
		{Coin: "bitcoin", Date: day(1), Price: 1},
		{Coin: "bitcoin", Date: day(1), Price: 2},
	}

	err := store.InsertBulk(ctx, records)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	// Batch must fail atomically: nothing persisted.
	if _, err := store.GetByKey(ctx, domain.RecordKey{Coin: "bitcoin", Date: day(1)}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after failed batch, got %v", err)
	}
}

func TestSnapshotStore_GetByCoinOrdered(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	records := []*domain.Record{
		{Coin: "bitcoin", Date: day(3), Price: 3},
		{Coin: "bitcoin", Date: day(1), Price: 1},
		{Coin: "ethereum", Date: day(2), Price: 9},
		{Coin: "bitcoin", Date: day(2), Price: 2},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByCoin(ctx, "bitcoin")
	if err != nil {
		t.Fatalf("GetByCoin failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	for i, want := range []float64{1, 2, 3} {
		if got[i].Price != want {
			t.Errorf("Record %d out of order: got price %f, want %f", i, got[i].Price, want)
		}
	}
}

func TestSnapshotStore_GetByDateRange(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	records := []*domain.Record{
		{Coin: "ethereum", Date: day(2), Price: 9},
		{Coin: "bitcoin", Date: day(1), Price: 1},
		{Coin: "bitcoin", Date: day(2), Price: 2},
		{Coin: "bitcoin", Date: day(5), Price: 5},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByDateRange(ctx, day(1), day(2))
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records in range, got %d", len(got))
	}
	// Ordered by (coin, date): bitcoin d1, bitcoin d2, ethereum d2.
	if got[0].Coin != "bitcoin" || !got[0].Date.Equal(day(1)) {
		t.Errorf("Unexpected first record: %s %s", got[0].Coin, got[0].Date)
	}
	if got[2].Coin != "ethereum" {
		t.Errorf("Expected ethereum last, got %s", got[2].Coin)
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil record, got %v", err)
	}
	if err := store.Insert(ctx, &domain.Record{Date: day(1)}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty coin, got %v", err)
	}
}
