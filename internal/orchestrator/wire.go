package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"execution-lab/internal/backtest"
	"execution-lab/internal/config"
	"execution-lab/internal/fillmodel"
	"execution-lab/internal/guardrail"
	"execution-lab/internal/metrics"
	"execution-lab/internal/replay"
	"execution-lab/internal/strategy"
)

// WireOptions selects the optional parts of a configured Orchestrator.
type WireOptions struct {
	Persist bool // store trades, no-trade events and campaign verdicts
	Sweep   bool // run the sensitivity sweep after walk-forward
}

// FromConfig builds an Orchestrator for cfg over stores.
func FromConfig(cfg *config.Config, stores *Stores, wo WireOptions, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	ropts := backtest.RunnerOptions{
		ReplayRunner: replay.NewRunner(stores.Bars, logger),
		Source:       stores.SnapshotSource(cfg.Storage.FetchRatePerSec, cfg.Storage.FetchBurst, logger),
		Model:        fillmodel.New(cfg.FillModel),
		Config:       cfg.Engine,
		Logger:       logger,
	}
	opts := Options{
		Strategy:    strat,
		Checker:     guardrail.NewChecker(cfg.Guardrail, logger),
		Summary:     cfg.Metrics,
		WalkForward: cfg.WalkForward,
		SweepSteps:  cfg.Sweep.Steps,
		Logger:      logger,
	}
	if wo.Persist {
		ropts.TradeRecordStore = stores.Trades
		ropts.NoTradeEventStore = stores.NoTrades
		opts.Aggregator = metrics.NewAggregator(stores.Trades, stores.Campaigns)
		opts.Trades = stores.Trades
	}
	if wo.Sweep {
		opts.Sensitivity = guardrail.NewSensitivityGuard(cfg.Sensitivity, logger)
	}
	opts.Runner = backtest.NewRunner(ropts)
	return New(opts), nil
}
