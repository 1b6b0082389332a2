package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/backtest"
	"execution-lab/internal/config"
	"execution-lab/internal/domain"
	"execution-lab/internal/guardrail"
	"execution-lab/internal/metrics"
	"execution-lab/internal/replay"
	"execution-lab/internal/storage"
	"execution-lab/internal/storage/memory"
	"execution-lab/internal/strategy"
	"execution-lab/internal/walkforward"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	hour = int64(time.Hour / time.Millisecond)
)

func TestLoadFixtures_Deterministic(t *testing.T) {
	ctx := context.Background()
	opts := DefaultFixtureOptions("BTC-USD", jan1, jan1+47*hour, 7)

	load := func() ([]*domain.Bar, []*domain.OrderBookSnapshot) {
		bars, books := memory.NewBarStore(), memory.NewOrderBookStore()
		n, err := LoadFixtures(ctx, bars, books, opts)
		require.NoError(t, err)
		assert.Equal(t, 48, n)

		gotBars, err := bars.GetByTimeRange(ctx, "BTC-USD", jan1, jan1+47*hour)
		require.NoError(t, err)
		gotSnaps, err := books.GetByTimeRange(ctx, "BTC-USD", jan1, jan1+47*hour)
		require.NoError(t, err)
		return gotBars, gotSnaps
	}

	bars1, snaps1 := load()
	bars2, snaps2 := load()
	assert.Equal(t, bars1, bars2)
	assert.Equal(t, snaps1, snaps2)
	require.Len(t, snaps1, 48)

	for i, b := range bars1 {
		assert.LessOrEqual(t, b.Low, b.Open)
		assert.LessOrEqual(t, b.Low, b.Close)
		assert.GreaterOrEqual(t, b.High, b.Open)
		assert.GreaterOrEqual(t, b.High, b.Close)
		if i > 0 {
			assert.Equal(t, bars1[i-1].Close, b.Open)
		}
	}
	assert.Less(t, snaps1[0].BestBid(), snaps1[0].BestAsk())
	assert.Len(t, snaps1[0].Bids, 5)
}

func TestLoadFixtures_Invalid(t *testing.T) {
	opts := DefaultFixtureOptions("BTC-USD", jan1, jan1-1, 1)
	_, err := LoadFixtures(context.Background(), memory.NewBarStore(), memory.NewOrderBookStore(), opts)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

type harness struct {
	stores *Stores
	runner *backtest.Runner
}

func newHarness(t *testing.T, days int) *harness {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStores()
	to := jan1 + int64(days)*24*hour - 1
	_, err := LoadFixtures(ctx, s.Bars, s.OrderBooks, DefaultFixtureOptions("BTC-USD", jan1, to, 11))
	require.NoError(t, err)

	runner := backtest.NewRunner(backtest.RunnerOptions{
		ReplayRunner: replay.NewRunner(s.Bars, nil),
		Source:       s.SnapshotSource(0, 1, nil),
		Config:       backtest.DefaultConfig(),
	})
	return &harness{stores: s, runner: runner}
}

func (h *harness) orchestrator(sens *guardrail.SensitivityGuard) *Orchestrator {
	return New(Options{
		Runner:      h.runner,
		Strategy:    strategy.NewTimeExitStrategy(domain.PositionLong, 4, 6, nil),
		Checker:     guardrail.NewChecker(guardrail.DefaultConfig(), nil),
		Summary:     metrics.DefaultSummaryOptions(),
		WalkForward: walkforward.Config{Split: walkforward.DefaultSplitConfig(), TrainDays: 20, TestDays: 5, DDLimitPct: 30, Workers: 2},
		Sensitivity: sens,
		SweepSteps:  []float64{-0.5, 0.5},
		Aggregator:  metrics.NewAggregator(h.stores.Trades, h.stores.Campaigns),
		Now:         func() time.Time { return time.UnixMilli(jan1) },
	})
}

func TestOrchestrator_RunCampaign(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 10)
	orch := h.orchestrator(nil)
	to := jan1 + 10*24*hour - 1

	rep, err := orch.RunCampaign(ctx, "BTC-USD", jan1, to, 3)
	require.NoError(t, err)

	assert.NotEmpty(t, rep.Result.Trades)
	assert.Equal(t, rep.Result.RunID, rep.Metrics.RunID)
	assert.Equal(t, len(rep.Result.Trades), rep.Metrics.TradeCount)
	assert.Equal(t, rep.Evaluation.Verdict.Passed, rep.Verdict.Passed)
	assert.Equal(t, rep.Evaluation.Verdict.Reason, rep.Verdict.Reason)
	// ten days cannot satisfy the minimum OOS length
	assert.False(t, rep.Verdict.Passed)

	require.NotNil(t, rep.Stored)
	stored, err := h.stores.Campaigns.GetByID(ctx, rep.Result.RunID)
	require.NoError(t, err)
	assert.Equal(t, string(rep.Verdict.Reason), stored.Reason)
	assert.Equal(t, uint64(3), stored.Seed)
	assert.Equal(t, jan1, stored.CreatedAtMs)

	again, err := orch.RunCampaign(ctx, "BTC-USD", jan1, to, 3)
	require.NoError(t, err)
	assert.Nil(t, again.Stored)
	assert.Equal(t, rep.Result.FinalEquityRealistic, again.Result.FinalEquityRealistic)
}

func TestOrchestrator_RunCampaign_Cancelled(t *testing.T) {
	h := newHarness(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orchestrator(nil).RunCampaign(ctx, "BTC-USD", jan1, jan1+3*24*hour-1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_RunWalkForward(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 60)
	orch := h.orchestrator(guardrail.NewSensitivityGuard(guardrail.DefaultSensitivityConfig(), nil))

	rep, err := orch.RunWalkForward(ctx, "BTC-USD", jan1, jan1+60*24*hour-1, 5)
	require.NoError(t, err)

	require.NotEmpty(t, rep.Pipeline.Windows)
	require.NotNil(t, rep.Pipeline.OOS)
	assert.Equal(t, rep.Evaluation.Verdict.Passed, rep.OOSVerdict.Passed)

	require.NotNil(t, rep.Stability)
	require.Len(t, rep.Variations, 2)
	for _, v := range rep.Variations {
		assert.NoError(t, v.Err)
		assert.Equal(t, "hold_bars", v.Param)
		assert.Len(t, v.Metrics, len(includedTests(rep.Pipeline)))
	}
	assert.Equal(t, 2.0, rep.Variations[0].Value)
	assert.Equal(t, 6.0, rep.Variations[1].Value)

	if rep.OOSVerdict.Passed {
		assert.Equal(t, rep.Stability.Result().Reason, rep.Verdict.Reason)
	} else {
		assert.Equal(t, rep.OOSVerdict, rep.Verdict)
	}

	require.NotNil(t, rep.Stored)
	assert.Equal(t, rep.Pipeline.OOS.RunID, rep.Stored.RunID)
	assert.Equal(t, rep.Verdict.Passed, rep.Stored.Passed)
}

func TestOrchestrator_RunWalkForward_PersistEqualWindows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 60)
	hold := 4
	cfg := config.Default()
	cfg.Strategy = domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeExit, Side: "LONG", HoldBars: &hold}
	cfg.WalkForward = walkforward.Config{Split: walkforward.DefaultSplitConfig(), TrainDays: 10, TestDays: 10, DDLimitPct: 30, Workers: 2}

	orch, err := FromConfig(cfg, h.stores, WireOptions{Persist: true, Sweep: true}, nil)
	require.NoError(t, err)

	rep, err := orch.RunWalkForward(ctx, "BTC-USD", jan1, jan1+60*24*hour-1, 5)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rep.Pipeline.Windows), 2)

	w0, w1 := rep.Pipeline.Windows[0], rep.Pipeline.Windows[1]
	require.Equal(t, w0.Window.Test, w1.Window.Train)
	assert.NotEqual(t, w0.Test.RunID, w1.Train.RunID)

	for _, runID := range []string{w0.Test.RunID, w1.Train.RunID, rep.Pipeline.OOS.RunID} {
		trades, err := h.stores.Trades.GetByRunID(ctx, runID)
		require.NoError(t, err)
		assert.NotEmpty(t, trades, "run %s", runID)
	}
	require.NotNil(t, rep.Stored)
	assert.Equal(t, rep.Pipeline.OOS.RunID, rep.Stored.RunID)
}

func TestOrchestrator_RunWalkForward_NoSweep(t *testing.T) {
	h := newHarness(t, 60)
	rep, err := h.orchestrator(nil).RunWalkForward(context.Background(), "BTC-USD", jan1, jan1+60*24*hour-1, 5)
	require.NoError(t, err)
	assert.Nil(t, rep.Stability)
	assert.Empty(t, rep.Variations)
	assert.Equal(t, rep.OOSVerdict, rep.Verdict)
}

func TestOrchestrator_RunWalkForward_RangeTooShort(t *testing.T) {
	h := newHarness(t, 10)
	_, err := h.orchestrator(nil).RunWalkForward(context.Background(), "BTC-USD", jan1, jan1+10*24*hour-1, 5)
	assert.ErrorIs(t, err, walkforward.ErrRangeTooShort)
}

func TestStores_Close(t *testing.T) {
	s := NewMemoryStores()
	s.useSQLite(t.TempDir())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestFromConfig(t *testing.T) {
	hold := 4
	cfg := config.Default()
	cfg.Strategy = domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeExit, Side: "LONG", HoldBars: &hold}
	s := NewMemoryStores()

	orch, err := FromConfig(cfg, s, WireOptions{Persist: true, Sweep: true}, nil)
	require.NoError(t, err)
	assert.NotNil(t, orch.opts.Aggregator)
	assert.NotNil(t, orch.opts.Sensitivity)
	assert.Equal(t, "hold_bars", firstKey(orch.opts.Strategy.Params()))

	orch, err = FromConfig(cfg, s, WireOptions{}, nil)
	require.NoError(t, err)
	assert.Nil(t, orch.opts.Aggregator)
	assert.Nil(t, orch.opts.Sensitivity)

	cfg.Strategy.StrategyType = "MOMENTUM"
	_, err = FromConfig(cfg, s, WireOptions{}, nil)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategyType)
}

func firstKey(m map[string]float64) string {
	for k := range m {
		return k
	}
	return ""
}

func TestOrchestrator_Verify(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 10)
	to := jan1 + 10*24*hour - 1

	rep, err := h.orchestrator(nil).Verify(ctx, "BTC-USD", jan1, to, 5)
	require.NoError(t, err)
	assert.True(t, rep.Match())
	assert.True(t, rep.Determinism.Match)
	assert.Empty(t, rep.Determinism.Divergences)
	assert.Nil(t, rep.Stored)
}

func TestOrchestrator_Verify_StoredTrades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 10)
	to := jan1 + 10*24*hour - 1

	persisting := backtest.NewRunner(backtest.RunnerOptions{
		ReplayRunner:     replay.NewRunner(h.stores.Bars, nil),
		Source:           h.stores.SnapshotSource(0, 1, nil),
		Config:           backtest.DefaultConfig(),
		TradeRecordStore: h.stores.Trades,
	})
	orch := New(Options{
		Runner:   persisting,
		Strategy: strategy.NewTimeExitStrategy(domain.PositionLong, 4, 6, nil),
		Checker:  guardrail.NewChecker(guardrail.DefaultConfig(), nil),
		Summary:  metrics.DefaultSummaryOptions(),
		Trades:   h.stores.Trades,
	})

	run, err := orch.RunCampaign(ctx, "BTC-USD", jan1, to, 5)
	require.NoError(t, err)
	require.NotEmpty(t, run.Result.Trades)

	// Verify replays without storing, so no duplicate-key failure
	rep, err := orch.Verify(ctx, "BTC-USD", jan1, to, 5)
	require.NoError(t, err)
	require.NotNil(t, rep.Stored)
	assert.True(t, rep.Match())
	assert.Equal(t, len(run.Result.Trades), rep.Stored.TotalTrades)
	assert.Equal(t, rep.Stored.TotalTrades, rep.Stored.MatchedTrades)
}
