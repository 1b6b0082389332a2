package guardrail

// Config holds the promotion thresholds.
type Config struct {
	MinOOSCalmar         float64 `yaml:"min_oos_calmar"`
	MaxDrawdownPct       float64 `yaml:"max_drawdown_pct"`
	MaxRiskOfRuin        float64 `yaml:"max_risk_of_ruin"`
	MinOOSDays           float64 `yaml:"min_oos_days"`
	MaxCAGRDivergencePct float64 `yaml:"max_cagr_divergence_pct"`
	MinTrades            int     `yaml:"min_trades"`
	MinHistoryMonths     float64 `yaml:"min_history_months"`
	MinCalmarCILower     float64 `yaml:"min_calmar_ci_lower"`
	MaxTrackingErrorPct  float64 `yaml:"max_tracking_error_pct"`
	MaxRMSEPctOfCapital  float64 `yaml:"max_rmse_pct_of_capital"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinOOSCalmar:         0.5,
		MaxDrawdownPct:       25,
		MaxRiskOfRuin:        0.05,
		MinOOSDays:           60,
		MaxCAGRDivergencePct: 5,
		MinTrades:            30,
		MinHistoryMonths:     12,
		MinCalmarCILower:     0,
		MaxTrackingErrorPct:  5,
		MaxRMSEPctOfCapital:  2,
	}
}

// SensitivityConfig holds the parameter-stability thresholds.
type SensitivityConfig struct {
	Alpha                  float64 `yaml:"alpha"`
	MaxDegradationPct      float64 `yaml:"max_degradation_pct"`       // Calmar drop vs baseline, percent
	MaxDrawdownIncreasePct float64 `yaml:"max_drawdown_increase_pct"` // percentage points over baseline
	MinSharpe              float64 `yaml:"min_sharpe"`
	MinValidRuns           int     `yaml:"min_valid_runs"`
}

// DefaultSensitivityConfig returns the default stability thresholds.
func DefaultSensitivityConfig() SensitivityConfig {
	return SensitivityConfig{
		Alpha:                  0.05,
		MaxDegradationPct:      50,
		MaxDrawdownIncreasePct: 10,
		MinSharpe:              0,
		MinValidRuns:           4,
	}
}
