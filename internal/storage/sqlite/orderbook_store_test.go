package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/domain"
	"execution-lab/internal/orderbook"
	"execution-lab/internal/storage"
)

func snapshot(ts int64, venue string) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		Symbol:    "BTCUSDT",
		Venue:     venue,
		Timestamp: ts,
		Bids:      []domain.Level{{Price: 99.5, Qty: 3}, {Price: 99, Qty: 10}},
		Asks:      []domain.Level{{Price: 100.5, Qty: 2}},
	}
}

func TestOrderBookStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewOrderBookStore(t.TempDir())
	defer store.Close()

	require.NoError(t, store.InsertBulk(ctx, []*domain.OrderBookSnapshot{
		snapshot(3000, "a"), snapshot(1000, "a"), snapshot(2000, "b"),
	}))

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, snapshot(1000, "a"), got[0])
	assert.Equal(t, "b", got[1].Venue)
}

func TestOrderBookStore_MissingFile(t *testing.T) {
	store := NewOrderBookStore(t.TempDir())
	defer store.Close()

	_, err := store.GetByTimeRange(context.Background(), "ETHUSDT", 0, 1000)
	assert.ErrorIs(t, err, storage.ErrFileNotFound)
	assert.NoFileExists(t, store.Path("ETHUSDT"), "reads must not create files")
}

func TestOrderBookStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewOrderBookStore(t.TempDir())
	defer store.Close()

	require.NoError(t, store.InsertBulk(ctx, []*domain.OrderBookSnapshot{snapshot(1000, "a")}))
	err := store.InsertBulk(ctx, []*domain.OrderBookSnapshot{snapshot(2000, "a"), snapshot(1000, "a")})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, "BTCUSDT", 0, 5000)
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch is rolled back")
}

func TestOrderBookStore_InvalidSymbol(t *testing.T) {
	store := NewOrderBookStore(t.TempDir())
	_, err := store.GetByTimeRange(context.Background(), "../etc", 0, 1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestOrderBookStore_CacheReportsFileNotFound(t *testing.T) {
	store := NewOrderBookStore(t.TempDir())
	defer store.Close()

	cache := orderbook.NewCache(store)
	_, err := cache.GetSnapshot(context.Background(), "SOLUSDT", 1000, time.Second)
	require.Error(t, err)
	assert.Equal(t, orderbook.ReasonFileNotFound, orderbook.ReasonOf(err))
}
