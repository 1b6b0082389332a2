// Package orchestrator coordinates a campaign end to end:
// backtest → campaign metrics → guardrails → persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
	"execution-lab/internal/guardrail"
	"execution-lab/internal/metrics"
	"execution-lab/internal/storage"
	"execution-lab/internal/strategy"
	"execution-lab/internal/walkforward"
)

// Options for creating an Orchestrator.
type Options struct {
	// Required
	Runner   *backtest.Runner
	Strategy strategy.Tunable
	Checker  *guardrail.Checker

	Summary metrics.SummaryOptions

	// Walk-forward only
	WalkForward walkforward.Config
	Sensitivity *guardrail.SensitivityGuard // nil skips the sweep
	SweepSteps  []float64

	// Optional; nil skips persistence of campaign outcomes.
	Aggregator *metrics.Aggregator

	// Optional; when set Verify also checks stored trades.
	Trades storage.TradeRecordStore

	Logger *zap.Logger
	Now    func() time.Time
}

// Orchestrator runs guarded campaigns for one strategy.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{opts: opts, logger: opts.Logger}
}

// CampaignReport is the outcome of a single guarded backtest.
type CampaignReport struct {
	Result     *backtest.Result
	Metrics    *metrics.CampaignMetrics
	Evaluation *guardrail.Evaluation
	Verdict    guardrail.Result
	Stored     *domain.CampaignRun // nil when not persisted
}

// RunCampaign backtests the strategy over [from, to], scores the result and
// applies every guardrail.
// Phases:
//  1. Backtest
//  2. Campaign metrics
//  3. Guardrails
//  4. Persist the verdict
func (o *Orchestrator) RunCampaign(ctx context.Context, symbol string, from, to int64, seed uint64) (*CampaignReport, error) {
	o.logger.Info("phase 1: backtest",
		zap.String("symbol", symbol),
		zap.String("strategy", o.opts.Strategy.Name()),
	)
	res, err := o.opts.Runner.Run(ctx, symbol, from, to, o.opts.Strategy, seed)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (backtest) failed: %w", err)
	}

	o.logger.Info("phase 2: campaign metrics", zap.String("run_id", res.RunID))
	opts := o.opts.Summary.WithSeed(seed)
	if opts.HistoryStart == 0 {
		opts.HistoryStart = from
	}
	m := metrics.Summarize(res, opts)

	o.logger.Info("phase 3: guardrails")
	rep := &CampaignReport{
		Result:     res,
		Metrics:    m,
		Evaluation: o.opts.Checker.Evaluate(m),
		Verdict:    o.opts.Checker.CheckAll(m),
	}

	stored, err := o.persist(ctx, m, from, to, seed, rep.Verdict)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (persist) failed: %w", err)
	}
	rep.Stored = stored
	return rep, nil
}

// WalkForwardReport is the outcome of a walk-forward campaign.
type WalkForwardReport struct {
	Pipeline   *walkforward.Result
	Evaluation *guardrail.Evaluation // OOS checklist
	OOSVerdict guardrail.Result
	Stability  *guardrail.StabilityReport // nil when the sweep is disabled
	Variations []guardrail.Variation
	Verdict    guardrail.Result // OOS verdict, then stability
	Stored     *domain.CampaignRun
}

// RunWalkForward runs the walk-forward pipeline over [from, to], applies the
// guardrails to the OOS run and, when a sensitivity guard is configured,
// sweeps every tunable parameter through the same windows.
// Phases:
//  1. Walk-forward windows + OOS
//  2. OOS guardrails
//  3. Sensitivity sweep
//  4. Persist the verdict
func (o *Orchestrator) RunWalkForward(ctx context.Context, symbol string, from, to int64, seed uint64) (*WalkForwardReport, error) {
	opts := o.opts.Summary.WithSeed(seed)
	if opts.HistoryStart == 0 {
		opts.HistoryStart = from
	}

	o.logger.Info("phase 1: walk-forward", zap.String("strategy", o.opts.Strategy.Name()))
	base, err := o.pipeline(o.opts.Runner, symbol, seed, o.opts.Strategy, opts).Run(ctx, from, to+1)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (walk-forward) failed: %w", err)
	}

	o.logger.Info("phase 2: oos guardrails", zap.String("run_id", base.OOS.RunID))
	rep := &WalkForwardReport{
		Pipeline:   base,
		Evaluation: o.opts.Checker.Evaluate(base.OOS),
		OOSVerdict: o.opts.Checker.CheckAll(base.OOS),
	}
	rep.Verdict = rep.OOSVerdict

	if o.opts.Sensitivity != nil {
		o.logger.Info("phase 3: sensitivity sweep")
		stability, variations, err := o.sweep(ctx, symbol, from, to, seed, opts, base)
		if err != nil {
			return nil, fmt.Errorf("phase 3 (sensitivity) failed: %w", err)
		}
		rep.Stability = stability
		rep.Variations = variations
		if rep.Verdict.Passed {
			rep.Verdict = stability.Result()
		}
	} else {
		o.logger.Info("phase 3: skipping sensitivity sweep")
	}

	stored, err := o.persist(ctx, base.OOS, from, to, seed, rep.Verdict)
	if err != nil {
		return nil, fmt.Errorf("phase 4 (persist) failed: %w", err)
	}
	rep.Stored = stored
	return rep, nil
}

func (o *Orchestrator) pipeline(runner *backtest.Runner, symbol string, seed uint64, strat backtest.Strategy, opts metrics.SummaryOptions) *walkforward.Pipeline {
	run := func(ctx context.Context, stage walkforward.Stage, r walkforward.Range) (*backtest.Result, error) {
		return runner.RunStage(ctx, string(stage), symbol, r.Start, r.Last(), strat, seed)
	}
	score := func(res *backtest.Result) *metrics.CampaignMetrics {
		return metrics.Summarize(res, opts)
	}
	return walkforward.NewPipeline(o.opts.WalkForward, run, score, o.logger.With(zap.String("strategy", strat.Name())))
}

// sweep re-runs the pipeline for every one-at-a-time parameter variation.
// A variation that fails to build or run is kept with its error so the
// guard can count it as invalid. Variation runs are not persisted.
func (o *Orchestrator) sweep(
	ctx context.Context,
	symbol string,
	from, to int64,
	seed uint64,
	opts metrics.SummaryOptions,
	base *walkforward.Result,
) (*guardrail.StabilityReport, []guardrail.Variation, error) {
	params := o.opts.Strategy.Params()
	baseline := guardrail.Variation{
		VariationSpec: guardrail.VariationSpec{Params: params},
		Metrics:       includedTests(base),
	}

	runner := o.opts.Runner.WithoutPersistence()
	specs := guardrail.GenerateVariations(params, o.opts.SweepSteps)
	variations := make([]guardrail.Variation, 0, len(specs))
	for _, spec := range specs {
		v := guardrail.Variation{VariationSpec: spec}
		strat, err := o.opts.Strategy.WithParams(spec.Params)
		if err != nil {
			v.Err = err
			variations = append(variations, v)
			continue
		}
		res, err := o.pipeline(runner, symbol, seed, strat, opts).Run(ctx, from, to+1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			v.Err = err
		} else {
			v.Metrics = includedTests(res)
		}
		variations = append(variations, v)
	}

	return o.opts.Sensitivity.Evaluate(baseline, variations), variations, nil
}

func includedTests(res *walkforward.Result) []*metrics.CampaignMetrics {
	var out []*metrics.CampaignMetrics
	for _, w := range res.Windows {
		if !w.Excluded {
			out = append(out, w.Test)
		}
	}
	return out
}

// persist stores the verdict. A campaign already stored under the same run
// id is left untouched.
func (o *Orchestrator) persist(ctx context.Context, m *metrics.CampaignMetrics, from, to int64, seed uint64, verdict guardrail.Result) (*domain.CampaignRun, error) {
	if o.opts.Aggregator == nil {
		return nil, nil
	}
	run, err := o.opts.Aggregator.StoreCampaign(ctx, m, metrics.CampaignOutcome{
		FromMs:    from,
		ToMs:      to,
		Seed:      seed,
		Passed:    verdict.Passed,
		Reason:    string(verdict.Reason),
		CreatedAt: o.opts.Now().UnixMilli(),
	})
	if errors.Is(err, storage.ErrDuplicateKey) {
		o.logger.Warn("campaign already stored", zap.String("run_id", m.RunID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.logger.Info("phase 4: campaign stored",
		zap.String("run_id", run.RunID),
		zap.Bool("passed", run.Passed),
	)
	return run, nil
}
