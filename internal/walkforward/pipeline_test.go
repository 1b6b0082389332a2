package walkforward

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/backtest"
	"execution-lab/internal/metrics"
)

// fakeRun returns an empty result spanning the requested range.
func fakeRun(calls *atomic.Int32, failAt int64) RunFunc {
	return func(ctx context.Context, _ Stage, r Range) (*backtest.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		calls.Add(1)
		if r.Start == failAt {
			return nil, errors.New("boom")
		}
		return &backtest.Result{StartTime: r.Start, EndTime: r.End}, nil
	}
}

// dayScorer scores a result by its start day. Runs starting on a day listed in
// drawdowns get that drawdown.
func dayScorer(drawdowns map[int64]float64) Scorer {
	return func(res *backtest.Result) *metrics.CampaignMetrics {
		day := res.StartTime / DayMs
		return &metrics.CampaignMetrics{
			StartTime:        res.StartTime,
			EndTime:          res.EndTime,
			Calmar:           float64(day),
			Sharpe:           1,
			CAGRRealisticPct: 10,
			MaxDrawdownPct:   drawdowns[day],
			TradeCount:       2,
		}
	}
}

func TestPipeline_Run(t *testing.T) {
	var calls atomic.Int32
	cfg := DefaultConfig()
	// window 1 trains from day 30 with a 40% drawdown
	p := NewPipeline(cfg, fakeRun(&calls, -1), dayScorer(map[int64]float64{30: 40, 120: 12}), nil)

	res, err := p.Run(context.Background(), 0, 200*DayMs)
	require.NoError(t, err)

	assert.Equal(t, Range{Start: 160 * DayMs, End: 200 * DayMs}, res.Splits.OOS)
	require.Len(t, res.Windows, 2)
	assert.Equal(t, 0, res.Windows[0].Index)
	assert.False(t, res.Windows[0].Excluded)
	assert.True(t, res.Windows[1].Excluded)
	assert.Contains(t, res.Windows[1].ExclusionReason, "40.00%")

	assert.Equal(t, 1, res.Aggregate.Windows)
	assert.Equal(t, 90.0, res.Aggregate.MeanTestCalmar)
	assert.Equal(t, 1.0, res.Aggregate.MeanTestSharpe)
	assert.Equal(t, 0.0, res.Aggregate.WorstTestDrawdownPct)
	assert.Equal(t, 2, res.Aggregate.TotalTestTrades)

	require.NotNil(t, res.OOS)
	assert.Equal(t, 160.0, res.OOS.Calmar)
	assert.Equal(t, int32(5), calls.Load(), "two runs per window plus the OOS run")
}

func TestPipeline_StagesAreDistinct(t *testing.T) {
	var mu sync.Mutex
	ranges := map[Stage]Range{}
	run := func(_ context.Context, stage Stage, r Range) (*backtest.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if _, dup := ranges[stage]; dup {
			return nil, errors.New("stage ran twice: " + string(stage))
		}
		ranges[stage] = r
		return &backtest.Result{StartTime: r.Start, EndTime: r.End}, nil
	}
	cfg := DefaultConfig()
	cfg.TrainDays, cfg.TestDays = 30, 30

	res, err := NewPipeline(cfg, run, dayScorer(nil), nil).Run(context.Background(), 0, 200*DayMs)
	require.NoError(t, err)
	require.Len(t, res.Windows, 4)

	// window 0 tests the range window 1 trains on
	assert.Equal(t, ranges[TestStage(0)], ranges[TrainStage(1)])
	assert.Len(t, ranges, 2*len(res.Windows)+1)
	assert.Equal(t, res.Splits.OOS, ranges[StageOOS])
}

func TestPipeline_RunErrorAborts(t *testing.T) {
	var calls atomic.Int32
	p := NewPipeline(DefaultConfig(), fakeRun(&calls, 30*DayMs), dayScorer(nil), nil)

	res, err := p.Run(context.Background(), 0, 200*DayMs)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "window 1 train")
}

func TestPipeline_OOSErrorAborts(t *testing.T) {
	var calls atomic.Int32
	p := NewPipeline(DefaultConfig(), fakeRun(&calls, 160*DayMs), dayScorer(nil), nil)

	res, err := p.Run(context.Background(), 0, 200*DayMs)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "oos run")
}

func TestPipeline_ContextCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(DefaultConfig(), fakeRun(&calls, -1), dayScorer(nil), nil)
	_, err := p.Run(ctx, 0, 200*DayMs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestPipeline_AllExcluded(t *testing.T) {
	var calls atomic.Int32
	p := NewPipeline(DefaultConfig(), fakeRun(&calls, -1), dayScorer(map[int64]float64{0: 50, 30: 50}), nil)

	res, err := p.Run(context.Background(), 0, 200*DayMs)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Aggregate.Windows)
	assert.Zero(t, res.Aggregate.MeanTestCalmar)
	assert.NotNil(t, res.OOS)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil, nil)
	assert.Equal(t, DefaultConfig(), p.cfg)
}
