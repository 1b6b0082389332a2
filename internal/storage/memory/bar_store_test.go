package memory

import (
	"context"
	"errors"
	"testing"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

func TestBarStore_InsertAndRange(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "BTC", Timestamp: 1000, Close: 1},
		{Symbol: "BTC", Timestamp: 2000, Close: 2},
		{Symbol: "BTC", Timestamp: 3000, Close: 3},
		{Symbol: "ETH", Timestamp: 2000, Close: 9},
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC", 1500, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 || got[0].Close != 2 || got[1].Close != 3 {
		t.Errorf("Unexpected bars: %+v", got)
	}
}

func TestBarStore_Duplicate(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	bars := []*domain.Bar{
		{Symbol: "BTC", Timestamp: 1000},
		{Symbol: "BTC", Timestamp: 1000},
	}
	if err := store.InsertBulk(ctx, bars); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestBarStore_PreservesStoredOrder(t *testing.T) {
	store := NewBarStore()
	ctx := context.Background()

	store.AppendRaw(
		domain.Bar{Symbol: "BTC", Timestamp: 2000},
		domain.Bar{Symbol: "BTC", Timestamp: 1000},
	)

	got, _ := store.GetByTimeRange(ctx, "BTC", 0, 5000)
	if len(got) != 2 || got[0].Timestamp != 2000 {
		t.Errorf("Stored order should be preserved, got %+v", got)
	}
}
