package metrics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
	"execution-lab/internal/storage/memory"
	"execution-lab/internal/tracking"
)

const yearMs = int64(31_557_600_000) // 365.25 days

func yearResult() *backtest.Result {
	return &backtest.Result{
		RunID:                  "run-1",
		StrategyName:           "trailing_stop",
		Symbol:                 "BTCUSDT",
		StartTime:              0,
		EndTime:                yearMs,
		InitialCapital:         10000,
		FinalEquityTheoretical: 12000,
		FinalEquityRealistic:   11000,
		EquityTheoretical:      []float64{10000, 10000, 12000},
		EquityRealistic:        []float64{10000, 9000, 11000},
		MetricsStatus:          backtest.MetricsOK,
		TrackingError: tracking.Metrics{
			AnnualizedTrackingErrorPct: 1.5,
			RMSEPctOfCapital:           0.8,
		},
		Trades: []*domain.TradeRecord{
			{TradeID: "t1", ExitTime: 10, PnLRealistic: 1000, ReturnPct: 10},
		},
	}
}

func TestSummarize(t *testing.T) {
	m := Summarize(yearResult(), DefaultSummaryOptions())

	assert.Equal(t, "run-1", m.RunID)
	assert.True(t, m.Authoritative)
	assert.Equal(t, 1, m.TradeCount)
	assert.InDelta(t, 365.25, m.OOSDays, 1e-9)
	assert.InDelta(t, 12, m.HistoryMonths, 1e-9)
	assert.InDelta(t, 20, m.CAGRTheoreticalPct, 1e-9)
	assert.InDelta(t, 10, m.CAGRRealisticPct, 1e-9)
	assert.InDelta(t, 10, m.CAGRDivergencePct, 1e-9)
	assert.InDelta(t, 10, m.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 1, m.Calmar, 1e-9)
	assert.Equal(t, 1.5, m.TrackingErrorPct)
	assert.Equal(t, 0.8, m.RMSEPctOfCapital)

	// No daily returns: no interval, no ruin, full size.
	assert.False(t, m.CalmarCIAvailable)
	assert.Equal(t, 0.0, m.RiskOfRuin)
	assert.Equal(t, 1.0, m.SizeReduction)
	assert.Equal(t, 1, m.Trades.Wins)
}

func TestSummarize_HistoryStart(t *testing.T) {
	opts := DefaultSummaryOptions()
	opts.HistoryStart = -yearMs

	m := Summarize(yearResult(), opts)

	assert.InDelta(t, 24, m.HistoryMonths, 1e-9)
	assert.InDelta(t, 365.25, m.OOSDays, 1e-9)
}

func TestSummarize_WithDailyReturnsIsSeeded(t *testing.T) {
	res := yearResult()
	for i, r := range mixedReturns() {
		res.ReturnsPerPeriod.Daily = append(res.ReturnsPerPeriod.Daily, backtest.PeriodReturn{
			PeriodStart: int64(i) * msPerDay,
			Realistic:   r,
			Theoretical: r,
		})
	}
	opts := DefaultSummaryOptions().WithSeed(99)
	opts.Bootstrap.Resamples = 200
	opts.Ruin.Paths = 500

	a := Summarize(res, opts)
	b := Summarize(res, opts)

	require.True(t, a.CalmarCIAvailable)
	assert.Equal(t, a.CalmarCI, b.CalmarCI)
	assert.Equal(t, a.RiskOfRuin, b.RiskOfRuin)
	assert.NotZero(t, a.Sharpe)
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeRecordStore()
	runs := memory.NewCampaignRunStore()
	require.NoError(t, trades.InsertBulk(ctx, []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run-1", ExitTime: 1, PnLRealistic: 5, ReturnPct: 1},
		{TradeID: "t2", RunID: "run-1", ExitTime: 2, PnLRealistic: -2, ReturnPct: -0.5},
		{TradeID: "t3", RunID: "run-2", ExitTime: 3, PnLRealistic: 1, ReturnPct: 0.1},
	}))
	agg := NewAggregator(trades, runs)

	st, err := agg.ComputeTradeStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalTrades)
	assert.Equal(t, 1, st.Wins)

	_, err = agg.ComputeTradeStats(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoTrades)

	m := Summarize(yearResult(), DefaultSummaryOptions())
	out := CampaignOutcome{FromMs: 0, ToMs: yearMs, Seed: 7, Passed: false, Reason: "OOS_CALMAR_TOO_LOW", CreatedAt: 123}
	run, err := agg.StoreCampaign(ctx, m, out)
	require.NoError(t, err)

	stored, err := runs.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Reason, stored.Reason)
	assert.Equal(t, uint64(7), stored.Seed)

	var decoded CampaignMetrics
	require.NoError(t, json.Unmarshal(stored.MetricsJSON, &decoded))
	assert.Equal(t, m.Calmar, decoded.Calmar)

	_, err = agg.StoreCampaign(ctx, m, out)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
