package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

func TestNoTradeEventStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewNoTradeEventStore(pool)

	ev := func(id string, ts int64) *domain.NoTradeEvent {
		return &domain.NoTradeEvent{
			OrderID:      id,
			RunID:        "run-1",
			Symbol:       "BTCUSDT",
			Timestamp:    ts,
			Side:         domain.SideBuy,
			Kind:         "LIMIT",
			TargetPrice:  99.5,
			RequestedQty: 10,
			FilledQty:    4,
			FilledRatio:  0.4,
			Reason:       domain.NoTradeTimeout,
			AgeBars:      5,
		}
	}

	require.NoError(t, store.InsertBulk(ctx, []*domain.NoTradeEvent{ev("o-2", 2000), ev("o-1", 2000), ev("o-3", 1000)}))
	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.NoTradeEvent{ev("o-4", 1), ev("o-1", 1)}), storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"o-3", "o-1", "o-2"}, []string{got[0].OrderID, got[1].OrderID, got[2].OrderID})
	assert.Equal(t, ev("o-3", 1000), got[0])
}
