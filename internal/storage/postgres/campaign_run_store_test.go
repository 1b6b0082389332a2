package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

func TestCampaignRunStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCampaignRunStore(pool)

	run := &domain.CampaignRun{
		RunID:       "run-b",
		StrategyID:  "TRAILING_STOP_LONG_trail5_stop10_60bars",
		Symbol:      "BTCUSDT",
		FromMs:      2000,
		ToMs:        3000,
		Seed:        math.MaxUint64,
		Passed:      false,
		Reason:      "OOS_CALMAR_TOO_LOW",
		MetricsJSON: []byte(`{"calmar": 0.5}`),
		CreatedAtMs: 42,
	}
	require.NoError(t, store.Insert(ctx, run))
	assert.ErrorIs(t, store.Insert(ctx, run), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.CampaignRun{}), storage.ErrInvalidInput)

	got, err := store.GetByID(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got.Seed)
	assert.Equal(t, "OOS_CALMAR_TOO_LOW", got.Reason)
	assert.JSONEq(t, `{"calmar": 0.5}`, string(got.MetricsJSON))

	earlier := *run
	earlier.RunID = "run-a"
	earlier.FromMs = 1000
	earlier.MetricsJSON = nil
	require.NoError(t, store.Insert(ctx, &earlier))

	runs, err := store.GetByStrategy(ctx, run.StrategyID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.JSONEq(t, `{}`, string(runs[0].MetricsJSON))

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
