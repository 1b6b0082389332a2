package backtest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"execution-lab/internal/domain"
	"execution-lab/internal/execution"
	"execution-lab/internal/fillmodel"
	"execution-lab/internal/idhash"
	"execution-lab/internal/observability"
	"execution-lab/internal/orderbook"
	"execution-lab/internal/replay"
	"execution-lab/internal/storage"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	ReplayRunner *replay.Runner
	Source       orderbook.Source // optional; nil prices every fill without a book
	Model        *fillmodel.Model // optional; nil uses default parameters
	Config       Config
	Logger       *zap.Logger

	// Optional persistence. Nil stores are skipped.
	TradeRecordStore  storage.TradeRecordStore
	NoTradeEventStore storage.NoTradeEventStore
}

// Runner executes backtests with strategy hooks.
// A Runner is safe for concurrent use; every Run owns its engine and simulator.
type Runner struct {
	opts RunnerOptions
}

// NewRunner creates a new backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts}
}

// WithoutPersistence returns a Runner with the same sources that stores
// nothing. Replays of a persisted run use it.
func (r *Runner) WithoutPersistence() *Runner {
	opts := r.opts
	opts.TradeRecordStore = nil
	opts.NoTradeEventStore = nil
	return &Runner{opts: opts}
}

// Run executes a backtest for symbol within [from, to].
// The run id is derived from the strategy name, symbol, range and seed.
func (r *Runner) Run(ctx context.Context, symbol string, from, to int64, strategy Strategy, seed uint64) (*Result, error) {
	return r.RunStage(ctx, "", symbol, from, to, strategy, seed)
}

// RunStage is Run for one stage of a campaign that backtests the same range
// more than once. The stage becomes part of the run id, so trades of the
// stages never share ids.
func (r *Runner) RunStage(ctx context.Context, stage, symbol string, from, to int64, strategy Strategy, seed uint64) (*Result, error) {
	started := time.Now()
	cfg := r.opts.Config
	runID := idhash.ComputeStageRunID(strategy.Name(), symbol, stage, from, to, seed)
	logger := r.opts.Logger.With(zap.String("strategy", strategy.Name()))
	if stage != "" {
		logger = logger.With(zap.String("stage", stage))
	}

	sim := execution.NewSimulator(r.opts.Source, r.opts.Model, cfg.Execution, logger)
	engine := NewEngine(strategy, symbol, runID, sim, cfg, logger)

	if err := r.opts.ReplayRunner.Run(ctx, symbol, from, to, engine); err != nil {
		return nil, err
	}
	result := engine.Result()

	if err := r.persist(ctx, result); err != nil {
		return nil, err
	}

	observability.RecordBacktestRun(result.MetricsStatus, time.Since(started).Seconds(), time.Now().Unix())
	logger.Info("backtest complete",
		zap.String("run_id", runID),
		zap.Int("trades", len(result.Trades)),
		zap.Float64("final_equity", result.FinalEquityRealistic),
		zap.String("metrics_status", result.MetricsStatus),
	)
	return result, nil
}

func (r *Runner) persist(ctx context.Context, result *Result) error {
	if r.opts.TradeRecordStore != nil && len(result.Trades) > 0 {
		if err := r.opts.TradeRecordStore.InsertBulk(ctx, result.Trades); err != nil {
			return err
		}
	}
	if r.opts.NoTradeEventStore != nil && len(result.NoTradeEvents) > 0 {
		events := make([]*domain.NoTradeEvent, len(result.NoTradeEvents))
		for i := range result.NoTradeEvents {
			events[i] = &result.NoTradeEvents[i]
		}
		if err := r.opts.NoTradeEventStore.InsertBulk(ctx, events); err != nil {
			return err
		}
	}
	return nil
}
