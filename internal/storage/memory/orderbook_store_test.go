package memory

import (
	"context"
	"testing"

	"execution-lab/internal/domain"
)

func TestOrderBookStore_SortedAndCopied(t *testing.T) {
	store := NewOrderBookStore()
	ctx := context.Background()

	snaps := []*domain.OrderBookSnapshot{
		{Symbol: "BTC", Timestamp: 3000, Asks: []domain.Level{{Price: 101, Qty: 1}}},
		{Symbol: "BTC", Timestamp: 1000, Asks: []domain.Level{{Price: 100, Qty: 1}}},
	}
	if err := store.InsertBulk(ctx, snaps); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC", 0, 5000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 || got[0].Timestamp != 1000 {
		t.Fatalf("Expected ascending snapshots, got %+v", got)
	}

	got[0].Asks[0].Price = 1
	again, _ := store.GetByTimeRange(ctx, "BTC", 0, 5000)
	if again[0].Asks[0].Price != 100 {
		t.Error("Store should return copies of levels")
	}
}
