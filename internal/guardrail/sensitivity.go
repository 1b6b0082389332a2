package guardrail

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"execution-lab/internal/metrics"
)

// Stability verdicts.
const (
	StatusStable           = "STABLE"
	StatusUnstable         = "UNSTABLE"
	StatusInsufficientData = "INSUFFICIENT_DATA"
)

// Breach kinds.
const (
	BreachDegradation      = "calmar_degradation"
	BreachDrawdownIncrease = "drawdown_increase"
	BreachMinSharpe        = "min_sharpe"
)

// VariationSpec is one perturbed parameter set.
type VariationSpec struct {
	Param  string
	Value  float64
	Params map[string]float64
}

// Variation is a VariationSpec evaluated on one or more windows.
// A variation with Err set or without metrics is not valid.
type Variation struct {
	VariationSpec
	Metrics []*metrics.CampaignMetrics
	Err     error
}

func (v Variation) valid() bool {
	return v.Err == nil && len(v.Metrics) > 0
}

func (v Variation) calmars() []float64 {
	out := make([]float64, len(v.Metrics))
	for i, m := range v.Metrics {
		out[i] = m.Calmar
	}
	return out
}

type summary struct {
	calmar      float64
	drawdownPct float64 // worst
	sharpe      float64
}

func summarize(ms []*metrics.CampaignMetrics) summary {
	var s summary
	calmars := make([]float64, len(ms))
	sharpes := make([]float64, len(ms))
	for i, m := range ms {
		calmars[i] = m.Calmar
		sharpes[i] = m.Sharpe
		s.drawdownPct = math.Max(s.drawdownPct, m.MaxDrawdownPct)
	}
	s.calmar = stat.Mean(calmars, nil)
	s.sharpe = stat.Mean(sharpes, nil)
	return s
}

// Breach is a variation that crossed a stability threshold.
type Breach struct {
	Param  string
	Value  float64
	Kind   string
	Actual float64
	Limit  float64
}

// StabilityReport is the outcome of a sensitivity evaluation.
type StabilityReport struct {
	Status    string
	ValidRuns int
	PValues   map[string]float64 // per parameter; absent when the test is undefined
	MinPValue float64
	MinParam  string
	Breaches  []Breach
}

// Result maps the report onto a guardrail result.
func (r *StabilityReport) Result() Result {
	d := map[string]float64{"valid_runs": float64(r.ValidRuns), "breaches": float64(len(r.Breaches))}
	if r.MinParam != "" {
		d["min_p_value"] = r.MinPValue
	}
	switch r.Status {
	case StatusStable:
		return pass(d)
	case StatusInsufficientData:
		return fail(ReasonInsufficientData, d)
	default:
		return fail(ReasonUnstable, d)
	}
}

// SensitivityGuard decides whether a strategy's performance is robust to
// small parameter changes.
type SensitivityGuard struct {
	cfg    SensitivityConfig
	logger *zap.Logger
}

// NewSensitivityGuard creates a new sensitivity guard.
func NewSensitivityGuard(cfg SensitivityConfig, logger *zap.Logger) *SensitivityGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensitivityGuard{cfg: cfg, logger: logger}
}

// Evaluate compares variations against the baseline. For each swept
// parameter a one-way ANOVA on Calmar runs across the baseline group and
// that parameter's variations; the campaign is UNSTABLE when the smallest
// p-value is below Alpha or any variation breaches a threshold.
func (g *SensitivityGuard) Evaluate(baseline Variation, variations []Variation) *StabilityReport {
	rep := &StabilityReport{PValues: make(map[string]float64), MinPValue: 1}

	var valid []Variation
	for _, v := range variations {
		if v.valid() {
			valid = append(valid, v)
		}
	}
	rep.ValidRuns = len(valid)
	if !baseline.valid() || len(valid) < g.cfg.MinValidRuns {
		rep.Status = StatusInsufficientData
		g.logger.Info("sensitivity evaluation lacks data",
			zap.Int("valid_runs", rep.ValidRuns), zap.Int("min_valid_runs", g.cfg.MinValidRuns))
		return rep
	}

	byParam := make(map[string][]Variation)
	for _, v := range valid {
		byParam[v.Param] = append(byParam[v.Param], v)
	}
	params := make([]string, 0, len(byParam))
	for p := range byParam {
		params = append(params, p)
	}
	sort.Strings(params)

	for _, p := range params {
		groups := [][]float64{baseline.calmars()}
		for _, v := range byParam[p] {
			groups = append(groups, v.calmars())
		}
		res, ok := oneWayANOVA(groups)
		if !ok {
			continue
		}
		rep.PValues[p] = res.PValue
		if rep.MinParam == "" || res.PValue < rep.MinPValue {
			rep.MinPValue = res.PValue
			rep.MinParam = p
		}
	}

	base := summarize(baseline.Metrics)
	for _, v := range valid {
		rep.Breaches = append(rep.Breaches, g.breaches(base, v)...)
	}

	rep.Status = StatusStable
	if (rep.MinParam != "" && rep.MinPValue < g.cfg.Alpha) || len(rep.Breaches) > 0 {
		rep.Status = StatusUnstable
	}
	g.logger.Info("sensitivity evaluated",
		zap.String("status", rep.Status),
		zap.Int("valid_runs", rep.ValidRuns),
		zap.String("min_p_param", rep.MinParam),
		zap.Float64("min_p_value", rep.MinPValue),
		zap.Int("breaches", len(rep.Breaches)),
	)
	return rep
}

func (g *SensitivityGuard) breaches(base summary, v Variation) []Breach {
	s := summarize(v.Metrics)
	var out []Breach
	if base.calmar > 0 {
		degradation := (base.calmar - s.calmar) / base.calmar * 100
		if degradation > g.cfg.MaxDegradationPct {
			out = append(out, Breach{Param: v.Param, Value: v.Value, Kind: BreachDegradation, Actual: degradation, Limit: g.cfg.MaxDegradationPct})
		}
	}
	if inc := s.drawdownPct - base.drawdownPct; inc > g.cfg.MaxDrawdownIncreasePct {
		out = append(out, Breach{Param: v.Param, Value: v.Value, Kind: BreachDrawdownIncrease, Actual: inc, Limit: g.cfg.MaxDrawdownIncreasePct})
	}
	if s.sharpe < g.cfg.MinSharpe {
		out = append(out, Breach{Param: v.Param, Value: v.Value, Kind: BreachMinSharpe, Actual: s.sharpe, Limit: g.cfg.MinSharpe})
	}
	return out
}

// GenerateVariations builds a one-at-a-time grid: every parameter is scaled
// by (1+step) for each non-zero step while the others keep their base value.
// Output order is deterministic (parameters sorted by name, steps as given).
func GenerateVariations(base map[string]float64, steps []float64) []VariationSpec {
	names := make([]string, 0, len(base))
	for k := range base {
		names = append(names, k)
	}
	sort.Strings(names)

	var out []VariationSpec
	for _, name := range names {
		for _, s := range steps {
			if s == 0 {
				continue
			}
			params := make(map[string]float64, len(base))
			for k, v := range base {
				params[k] = v
			}
			params[name] = base[name] * (1 + s)
			out = append(out, VariationSpec{Param: name, Value: params[name], Params: params})
		}
	}
	return out
}

// String renders a breach for logs and tables.
func (b Breach) String() string {
	return fmt.Sprintf("%s=%g %s %.2f (limit %.2f)", b.Param, b.Value, b.Kind, b.Actual, b.Limit)
}
