package walkforward

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"execution-lab/internal/backtest"
	"execution-lab/internal/metrics"
	"execution-lab/internal/observability"
)

// Stage names one run of the pipeline.
type Stage string

// StageOOS is the final out-of-sample run.
const StageOOS Stage = "oos"

// TrainStage is the training run of window index.
func TrainStage(index int) Stage { return Stage(fmt.Sprintf("window-%d/train", index)) }

// TestStage is the test run of window index.
func TestStage(index int) Stage { return Stage(fmt.Sprintf("window-%d/test", index)) }

// RunFunc runs one independent backtest over a range. With train_days equal
// to test_days a window's test range is the next window's train range, so
// implementations that persist must key runs by stage as well as range.
type RunFunc func(ctx context.Context, stage Stage, r Range) (*backtest.Result, error)

// Scorer turns a backtest result into campaign metrics. The same scorer
// scores training windows, test windows and the final OOS run.
type Scorer func(res *backtest.Result) *metrics.CampaignMetrics

// Config configures the pipeline.
type Config struct {
	Split      SplitConfig `yaml:"split"`
	TrainDays  int         `yaml:"train_days"`
	TestDays   int         `yaml:"test_days"`
	DDLimitPct float64     `yaml:"dd_limit_pct"` // training drawdown above this excludes a window
	Workers    int         `yaml:"workers"`
}

// DefaultConfig returns 90/30 day windows, a 30% drawdown limit and 4 workers.
func DefaultConfig() Config {
	return Config{
		Split:      DefaultSplitConfig(),
		TrainDays:  90,
		TestDays:   30,
		DDLimitPct: 30,
		Workers:    4,
	}
}

// WindowResult is the scored outcome of one window.
type WindowResult struct {
	Window
	Train           *metrics.CampaignMetrics
	Test            *metrics.CampaignMetrics
	Excluded        bool
	ExclusionReason string
}

// Aggregate summarizes the test metrics of the included windows.
type Aggregate struct {
	Windows              int
	MeanTestCalmar       float64
	MeanTestSharpe       float64
	MeanTestCAGRPct      float64
	WorstTestDrawdownPct float64
	TotalTestTrades      int
}

// Result is the output of a pipeline run.
type Result struct {
	Splits    Splits
	Windows   []WindowResult
	Aggregate Aggregate
	OOS       *metrics.CampaignMetrics
	OOSResult *backtest.Result
}

// Pipeline runs walk-forward windows concurrently and a final OOS run.
type Pipeline struct {
	cfg    Config
	run    RunFunc
	score  Scorer
	logger *zap.Logger
}

// NewPipeline creates a new walk-forward pipeline.
func NewPipeline(cfg Config, run RunFunc, score Scorer, logger *zap.Logger) *Pipeline {
	d := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.TrainDays <= 0 {
		cfg.TrainDays = d.TrainDays
	}
	if cfg.TestDays <= 0 {
		cfg.TestDays = d.TestDays
	}
	if cfg.DDLimitPct <= 0 {
		cfg.DDLimitPct = d.DDLimitPct
	}
	if cfg.Split == (SplitConfig{}) {
		cfg.Split = d.Split
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, run: run, score: score, logger: logger}
}

// Run splits [start, end), runs every window over train+validation and then
// the final OOS run. Any run error aborts the pipeline and no partial
// result is returned.
func (p *Pipeline) Run(ctx context.Context, start, end int64) (*Result, error) {
	started := time.Now()

	splits, err := Split(start, end, p.cfg.Split)
	if err != nil {
		return nil, err
	}
	windows, err := GenerateWindows(splits.Train.Start, splits.Validation.End, p.cfg.TrainDays, p.cfg.TestDays)
	if err != nil {
		return nil, err
	}
	p.logger.Info("walk-forward started",
		zap.Int("windows", len(windows)),
		zap.Float64("oos_days", splits.OOS.Days()),
		zap.Int("workers", p.cfg.Workers),
	)

	results := make([]WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, w := range windows {
		g.Go(func() error {
			wr, err := p.runWindow(gctx, w)
			if err != nil {
				return err
			}
			results[i] = *wr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, wr := range results {
		status := "included"
		if wr.Excluded {
			status = "excluded"
			p.logger.Info("window excluded",
				zap.Int("window", wr.Index),
				zap.String("reason", wr.ExclusionReason),
			)
		}
		observability.RecordWalkForwardWindow(status)
	}

	oosRes, err := p.run(ctx, StageOOS, splits.OOS)
	if err != nil {
		return nil, fmt.Errorf("oos run: %w", err)
	}

	res := &Result{
		Splits:    splits,
		Windows:   results,
		Aggregate: aggregate(results),
		OOS:       p.score(oosRes),
		OOSResult: oosRes,
	}
	observability.RecordPipelineDuration(time.Since(started).Seconds())
	p.logger.Info("walk-forward complete",
		zap.Int("included_windows", res.Aggregate.Windows),
		zap.Float64("mean_test_calmar", res.Aggregate.MeanTestCalmar),
		zap.Float64("oos_calmar", res.OOS.Calmar),
	)
	return res, nil
}

func (p *Pipeline) runWindow(ctx context.Context, w Window) (*WindowResult, error) {
	trainRes, err := p.run(ctx, TrainStage(w.Index), w.Train)
	if err != nil {
		return nil, fmt.Errorf("window %d train: %w", w.Index, err)
	}
	testRes, err := p.run(ctx, TestStage(w.Index), w.Test)
	if err != nil {
		return nil, fmt.Errorf("window %d test: %w", w.Index, err)
	}

	wr := &WindowResult{Window: w, Train: p.score(trainRes), Test: p.score(testRes)}
	if dd := wr.Train.MaxDrawdownPct; dd > p.cfg.DDLimitPct {
		wr.Excluded = true
		wr.ExclusionReason = fmt.Sprintf("training drawdown %.2f%% exceeds limit %.2f%%", dd, p.cfg.DDLimitPct)
	}
	return wr, nil
}

func aggregate(results []WindowResult) Aggregate {
	var agg Aggregate
	var calmars, sharpes, cagrs []float64
	for _, wr := range results {
		if wr.Excluded {
			continue
		}
		agg.Windows++
		calmars = append(calmars, wr.Test.Calmar)
		sharpes = append(sharpes, wr.Test.Sharpe)
		cagrs = append(cagrs, wr.Test.CAGRRealisticPct)
		agg.TotalTestTrades += wr.Test.TradeCount
		agg.WorstTestDrawdownPct = max(agg.WorstTestDrawdownPct, wr.Test.MaxDrawdownPct)
	}
	if agg.Windows > 0 {
		agg.MeanTestCalmar = stat.Mean(calmars, nil)
		agg.MeanTestSharpe = stat.Mean(sharpes, nil)
		agg.MeanTestCAGRPct = stat.Mean(cagrs, nil)
	}
	return agg
}
