package guardrail

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"execution-lab/internal/metrics"
	"execution-lab/internal/observability"
)

// Checker evaluates campaign metrics against the thresholds.
// Every Check* method is a pure predicate.
type Checker struct {
	cfg    Config
	logger *zap.Logger
}

// NewChecker creates a new guardrail checker.
func NewChecker(cfg Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{cfg: cfg, logger: logger}
}

// Config returns the thresholds in use.
func (c *Checker) Config() Config { return c.cfg }

// CheckOOSCalmar requires the out-of-sample Calmar ratio to reach the floor.
func (c *Checker) CheckOOSCalmar(calmar float64) Result {
	d := map[string]float64{"calmar": calmar, "min": c.cfg.MinOOSCalmar}
	if calmar >= c.cfg.MinOOSCalmar {
		return pass(d)
	}
	return fail(ReasonOOSCalmarTooLow, d)
}

// CheckMaxDrawdown requires the realistic max drawdown (percent) to stay under the ceiling.
func (c *Checker) CheckMaxDrawdown(ddPct float64) Result {
	d := map[string]float64{"max_drawdown_pct": ddPct, "max": c.cfg.MaxDrawdownPct}
	if ddPct <= c.cfg.MaxDrawdownPct {
		return pass(d)
	}
	return fail(ReasonMaxDrawdownTooHigh, d)
}

// CheckRiskOfRuin requires the ruin probability to stay under the ceiling.
func (c *Checker) CheckRiskOfRuin(p float64) Result {
	d := map[string]float64{"risk_of_ruin": p, "max": c.cfg.MaxRiskOfRuin}
	if p <= c.cfg.MaxRiskOfRuin {
		return pass(d)
	}
	return fail(ReasonRiskOfRuinTooHigh, d)
}

// CheckOOSLength requires the out-of-sample period to span enough days.
func (c *Checker) CheckOOSLength(days float64) Result {
	d := map[string]float64{"oos_days": days, "min": c.cfg.MinOOSDays}
	if days >= c.cfg.MinOOSDays {
		return pass(d)
	}
	return fail(ReasonOOSTooShort, d)
}

// CheckCAGRDivergence bounds |theoretical CAGR - realistic CAGR| in percentage points.
func (c *Checker) CheckCAGRDivergence(theoreticalPct, realisticPct float64) Result {
	div := math.Abs(theoreticalPct - realisticPct)
	d := map[string]float64{
		"cagr_theoretical_pct": theoreticalPct,
		"cagr_realistic_pct":   realisticPct,
		"divergence_pct":       div,
		"max":                  c.cfg.MaxCAGRDivergencePct,
	}
	if div <= c.cfg.MaxCAGRDivergencePct {
		return pass(d)
	}
	return fail(ReasonCAGRDivergence, d)
}

// CheckTradeCount requires a minimum number of trades.
func (c *Checker) CheckTradeCount(n int) Result {
	d := map[string]float64{"trades": float64(n), "min": float64(c.cfg.MinTrades)}
	if n >= c.cfg.MinTrades {
		return pass(d)
	}
	return fail(ReasonTooFewTrades, d)
}

// CheckHistoryLength requires enough months of data behind the campaign.
func (c *Checker) CheckHistoryLength(months float64) Result {
	d := map[string]float64{"history_months": months, "min": c.cfg.MinHistoryMonths}
	if months >= c.cfg.MinHistoryMonths {
		return pass(d)
	}
	return fail(ReasonHistoryTooShort, d)
}

// CheckCalmarCI requires the lower bound of the Calmar confidence interval
// to reach the floor. An interval that could not be estimated fails.
func (c *Checker) CheckCalmarCI(lower float64, available bool) Result {
	if !available {
		return fail(ReasonCalmarCITooLow, map[string]float64{"insufficient_samples": 1, "min": c.cfg.MinCalmarCILower})
	}
	d := map[string]float64{"calmar_ci_lower": lower, "min": c.cfg.MinCalmarCILower}
	if lower >= c.cfg.MinCalmarCILower {
		return pass(d)
	}
	return fail(ReasonCalmarCITooLow, d)
}

// CheckTrackingError bounds the annualized tracking error and the RMSE,
// both in percent of capital.
func (c *Checker) CheckTrackingError(annualizedPct, rmsePct float64) Result {
	d := map[string]float64{
		"annualized_tracking_error_pct": annualizedPct,
		"rmse_pct_of_capital":           rmsePct,
		"max_annualized":                c.cfg.MaxTrackingErrorPct,
		"max_rmse":                      c.cfg.MaxRMSEPctOfCapital,
	}
	if annualizedPct <= c.cfg.MaxTrackingErrorPct && rmsePct <= c.cfg.MaxRMSEPctOfCapital {
		return pass(d)
	}
	return fail(ReasonTrackingErrorTooHigh, d)
}

type criterion struct {
	name      string
	threshold func(Config) string
	actual    func(*metrics.CampaignMetrics) string
	check     func(*Checker, *metrics.CampaignMetrics) Result
}

// criteria in priority order.
var criteria = []criterion{
	{
		name:      "OOS Calmar",
		threshold: func(c Config) string { return fmt.Sprintf(">= %.2f", c.MinOOSCalmar) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.2f", m.Calmar) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckOOSCalmar(m.Calmar) },
	},
	{
		name:      "Max drawdown",
		threshold: func(c Config) string { return fmt.Sprintf("<= %.1f%%", c.MaxDrawdownPct) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.2f%%", m.MaxDrawdownPct) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckMaxDrawdown(m.MaxDrawdownPct) },
	},
	{
		name:      "Risk of ruin",
		threshold: func(c Config) string { return fmt.Sprintf("<= %.3f", c.MaxRiskOfRuin) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.4f", m.RiskOfRuin) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckRiskOfRuin(m.RiskOfRuin) },
	},
	{
		name:      "OOS length",
		threshold: func(c Config) string { return fmt.Sprintf(">= %.0f days", c.MinOOSDays) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.1f days", m.OOSDays) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckOOSLength(m.OOSDays) },
	},
	{
		name:      "CAGR divergence",
		threshold: func(c Config) string { return fmt.Sprintf("<= %.2f pp", c.MaxCAGRDivergencePct) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.2f pp", m.CAGRDivergencePct) },
		check: func(c *Checker, m *metrics.CampaignMetrics) Result {
			return c.CheckCAGRDivergence(m.CAGRTheoreticalPct, m.CAGRRealisticPct)
		},
	},
	{
		name:      "Trade count",
		threshold: func(c Config) string { return fmt.Sprintf(">= %d", c.MinTrades) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%d", m.TradeCount) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckTradeCount(m.TradeCount) },
	},
	{
		name:      "History length",
		threshold: func(c Config) string { return fmt.Sprintf(">= %.0f months", c.MinHistoryMonths) },
		actual:    func(m *metrics.CampaignMetrics) string { return fmt.Sprintf("%.1f months", m.HistoryMonths) },
		check:     func(c *Checker, m *metrics.CampaignMetrics) Result { return c.CheckHistoryLength(m.HistoryMonths) },
	},
	{
		name:      "Calmar CI lower bound",
		threshold: func(c Config) string { return fmt.Sprintf(">= %.2f", c.MinCalmarCILower) },
		actual: func(m *metrics.CampaignMetrics) string {
			if !m.CalmarCIAvailable {
				return "n/a"
			}
			return fmt.Sprintf("%.2f", m.CalmarCI.Lower)
		},
		check: func(c *Checker, m *metrics.CampaignMetrics) Result {
			return c.CheckCalmarCI(m.CalmarCI.Lower, m.CalmarCIAvailable)
		},
	},
	{
		name: "Tracking error",
		threshold: func(c Config) string {
			return fmt.Sprintf("<= %.1f%% ann, <= %.1f%% rmse", c.MaxTrackingErrorPct, c.MaxRMSEPctOfCapital)
		},
		actual: func(m *metrics.CampaignMetrics) string {
			return fmt.Sprintf("%.2f%% ann, %.2f%% rmse", m.TrackingErrorPct, m.RMSEPctOfCapital)
		},
		check: func(c *Checker, m *metrics.CampaignMetrics) Result {
			return c.CheckTrackingError(m.TrackingErrorPct, m.RMSEPctOfCapital)
		},
	},
}

// CheckAll runs the checks in priority order and returns the first failure,
// or a passing result when every check passes.
func (c *Checker) CheckAll(m *metrics.CampaignMetrics) Result {
	for _, cr := range criteria {
		if r := cr.check(c, m); !r.Passed {
			c.record(m, r)
			return r
		}
	}
	r := pass(nil)
	c.record(m, r)
	return r
}

// Evaluate runs every check for display. Verdict matches CheckAll.
func (c *Checker) Evaluate(m *metrics.CampaignMetrics) *Evaluation {
	ev := &Evaluation{Verdict: pass(nil), Criteria: make([]CriterionResult, len(criteria))}
	for i, cr := range criteria {
		r := cr.check(c, m)
		ev.Criteria[i] = CriterionResult{
			Name:      cr.name,
			Threshold: cr.threshold(c.cfg),
			Actual:    cr.actual(m),
			Result:    r,
		}
		if !r.Passed && ev.Verdict.Passed {
			ev.Verdict = r
		}
	}
	return ev
}

func (c *Checker) record(m *metrics.CampaignMetrics, r Result) {
	observability.RecordGuardrailDecision(r.Passed, string(r.Reason))
	if r.Passed {
		c.logger.Info("campaign passed guardrails", zap.String("run_id", m.RunID))
		return
	}
	c.logger.Info("campaign rejected by guardrails",
		zap.String("run_id", m.RunID),
		zap.String("reason", string(r.Reason)),
		zap.Any("details", r.Details),
	)
}
