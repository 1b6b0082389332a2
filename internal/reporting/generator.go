package reporting

import (
	"fmt"
	"math"
	"time"

	"execution-lab/internal/backtest"
	"execution-lab/internal/guardrail"
	"execution-lab/internal/metrics"
	"execution-lab/internal/orchestrator"
	"execution-lab/internal/walkforward"
)

// Generator builds reports from orchestrator outcomes.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Campaign renders a single guarded backtest.
func (g *Generator) Campaign(rep *orchestrator.CampaignReport) *Report {
	return g.base(KindBacktest, rep.Result, rep.Metrics, rep.Evaluation, rep.Verdict)
}

// WalkForward renders a walk-forward campaign. Headline metrics, trades and
// data quality describe the OOS run.
func (g *Generator) WalkForward(rep *orchestrator.WalkForwardReport) *Report {
	p := rep.Pipeline
	r := g.base(KindWalkForward, p.OOSResult, p.OOS, rep.Evaluation, rep.Verdict)
	r.FromMs = p.Splits.Train.Start
	r.ToMs = p.Splits.OOS.Last()
	r.Summary = append(r.Summary,
		SummaryRow{"Included windows", fmt.Sprintf("%d / %d", p.Aggregate.Windows, len(p.Windows))},
		SummaryRow{"Mean test Calmar", fmt.Sprintf("%.3f", p.Aggregate.MeanTestCalmar)},
		SummaryRow{"Mean test Sharpe", fmt.Sprintf("%.3f", p.Aggregate.MeanTestSharpe)},
		SummaryRow{"Worst test drawdown", fmt.Sprintf("%.2f%%", p.Aggregate.WorstTestDrawdownPct)},
	)
	r.Windows = windowRows(p.Windows)
	if rep.Stability != nil {
		r.Sensitivity = sensitivitySection(rep.Stability, rep.Variations)
	}
	return r
}

func (g *Generator) base(kind string, res *backtest.Result, m *metrics.CampaignMetrics, ev *guardrail.Evaluation, verdict guardrail.Result) *Report {
	r := &Report{
		GeneratedAt: g.now(),
		Kind:        kind,
		RunID:       res.RunID,
		Strategy:    res.StrategyName,
		Symbol:      res.Symbol,
		FromMs:      res.StartTime,
		ToMs:        res.EndTime,
		Verdict:     Verdict{Passed: verdict.Passed, Reason: string(verdict.Reason)},
		Summary:     summaryRows(res, m),
		DataQuality: dataQuality(res),
		Trades:      tradeRows(res),
	}
	if ev != nil {
		r.Criteria = make([]CriterionRow, len(ev.Criteria))
		for i, c := range ev.Criteria {
			r.Criteria[i] = CriterionRow{Name: c.Name, Threshold: c.Threshold, Actual: c.Actual, Pass: c.Result.Passed}
		}
	}
	return r
}

func summaryRows(res *backtest.Result, m *metrics.CampaignMetrics) []SummaryRow {
	rows := []SummaryRow{
		{"Initial capital", fmt.Sprintf("%.2f", res.InitialCapital)},
		{"Final equity (realistic)", fmt.Sprintf("%.2f", res.FinalEquityRealistic)},
		{"Final equity (theoretical)", fmt.Sprintf("%.2f", res.FinalEquityTheoretical)},
		{"Trades", fmt.Sprintf("%d", len(res.Trades))},
		{"Partial fills", fmt.Sprintf("%d", res.ExecutionStats.PartialFills)},
		{"Rejected orders", fmt.Sprintf("%d", res.ExecutionStats.RejectedOrders)},
		{"Tracking error (ann.)", fmt.Sprintf("%.2f%%", finite(res.TrackingError.AnnualizedTrackingErrorPct))},
	}
	if m == nil {
		return rows
	}
	rows = append(rows,
		SummaryRow{"CAGR (realistic)", fmt.Sprintf("%.2f%%", finite(m.CAGRRealisticPct))},
		SummaryRow{"CAGR (theoretical)", fmt.Sprintf("%.2f%%", finite(m.CAGRTheoreticalPct))},
		SummaryRow{"Max drawdown", fmt.Sprintf("%.2f%%", finite(m.MaxDrawdownPct))},
		SummaryRow{"Calmar", fmt.Sprintf("%.3f", finite(m.Calmar))},
		SummaryRow{"Sharpe", fmt.Sprintf("%.3f", finite(m.Sharpe))},
		SummaryRow{"Win rate", fmt.Sprintf("%.1f%%", finite(m.Trades.WinRate)*100)},
		SummaryRow{"Risk of ruin", fmt.Sprintf("%.4f", finite(m.RiskOfRuin))},
		SummaryRow{"Size reduction", fmt.Sprintf("%.2f", finite(m.SizeReduction))},
	)
	if m.CalmarCIAvailable {
		rows = append(rows, SummaryRow{"Calmar CI", fmt.Sprintf("[%.3f, %.3f]", finite(m.CalmarCI.Lower), finite(m.CalmarCI.Upper))})
	}
	return rows
}

func dataQuality(res *backtest.Result) DataQualitySection {
	tv := res.TemporalValidation
	dq := DataQualitySection{
		MetricsStatus:       res.MetricsStatus,
		TemporalStatus:      tv.Status,
		BarCount:            tv.BarCount,
		GapCount:            tv.GapCount,
		SignificantGapCount: tv.SignificantGapCount,
		GapRatio:            finite(tv.GapRatio),
		InvalidSignals:      len(res.InvalidSignals),
		OrderBookFallbacks:  res.ExecutionStats.OrderBookFallbackCount,
	}
	for _, v := range res.IntegrityViolations {
		dq.IntegrityErrors = append(dq.IntegrityErrors,
			fmt.Sprintf("realistic equity above theoretical by %.4f%% at %s", v.DivergencePct, formatMs(v.Timestamp)))
	}
	return dq
}

func tradeRows(res *backtest.Result) []TradeRow {
	rows := make([]TradeRow, len(res.Trades))
	for i, t := range res.Trades {
		rows[i] = TradeRow{
			TradeID:    t.TradeID,
			Side:       string(t.Side),
			EntryTime:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitTime:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			ExitReason: t.ExitReason,
			Quantity:   t.Quantity,
			PnL:        t.PnLRealistic,
			ReturnPct:  finite(t.ReturnPct),
		}
	}
	return rows
}

func windowRows(ws []walkforward.WindowResult) []WindowRow {
	rows := make([]WindowRow, len(ws))
	for i, w := range ws {
		rows[i] = WindowRow{
			Index:           w.Index,
			TrainStartMs:    w.Window.Train.Start,
			TestStartMs:     w.Window.Test.Start,
			TestEndMs:       w.Window.Test.Last(),
			TrainDrawdown:   finite(w.Train.MaxDrawdownPct),
			TestCalmar:      finite(w.Test.Calmar),
			TestSharpe:      finite(w.Test.Sharpe),
			TestTrades:      w.Test.TradeCount,
			Excluded:        w.Excluded,
			ExclusionReason: w.ExclusionReason,
		}
	}
	return rows
}

func sensitivitySection(rep *guardrail.StabilityReport, vs []guardrail.Variation) *SensitivitySection {
	s := &SensitivitySection{
		Status:    rep.Status,
		ValidRuns: rep.ValidRuns,
		MinPValue: finite(rep.MinPValue),
		MinParam:  rep.MinParam,
	}
	for _, b := range rep.Breaches {
		s.Breaches = append(s.Breaches, b.String())
	}
	for _, v := range vs {
		row := VariationRow{Param: v.Param, Value: v.Value, Windows: len(v.Metrics)}
		if v.Err != nil {
			row.Error = v.Err.Error()
		}
		if len(v.Metrics) > 0 {
			sum := 0.0
			for _, m := range v.Metrics {
				sum += m.Calmar
			}
			row.MeanCalmar = finite(sum / float64(len(v.Metrics)))
		}
		s.Variations = append(s.Variations, row)
	}
	return s
}

// finite maps NaN and infinities to 0 so reports always encode.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
