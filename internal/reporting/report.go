package reporting

import (
	"encoding/json"
	"io"
	"time"
)

// Report kinds.
const (
	KindBacktest    = "backtest"
	KindWalkForward = "walkforward"
)

// Report is the rendered view of one campaign.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Kind        string    `json:"kind"`
	RunID       string    `json:"run_id"`
	Strategy    string    `json:"strategy"`
	Symbol      string    `json:"symbol"`
	FromMs      int64     `json:"from_ms"`
	ToMs        int64     `json:"to_ms"`

	Verdict  Verdict        `json:"verdict"`
	Summary  []SummaryRow   `json:"summary"`
	Criteria []CriterionRow `json:"criteria"`

	// Data quality: temporal validation, integrity and skipped signals
	DataQuality DataQualitySection `json:"data_quality"`

	Windows     []WindowRow         `json:"windows,omitempty"`
	Sensitivity *SensitivitySection `json:"sensitivity,omitempty"`
	Trades      []TradeRow          `json:"trades"`
}

// Verdict is the guardrail decision.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Status renders the verdict as PASS or REJECT(reason).
func (v Verdict) Status() string {
	if v.Passed {
		return "PASS"
	}
	return "REJECT(" + v.Reason + ")"
}

// SummaryRow is one headline metric.
type SummaryRow struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// CriterionRow is one guardrail criterion.
type CriterionRow struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// DataQualitySection lists the reasons a run may be non-authoritative.
type DataQualitySection struct {
	MetricsStatus       string   `json:"metrics_status"`
	TemporalStatus      string   `json:"temporal_status"`
	BarCount            int      `json:"bar_count"`
	GapCount            int      `json:"gap_count"`
	SignificantGapCount int      `json:"significant_gap_count"`
	GapRatio            float64  `json:"gap_ratio"`
	InvalidSignals      int      `json:"invalid_signals"`
	OrderBookFallbacks  int      `json:"order_book_fallbacks"`
	IntegrityErrors     []string `json:"integrity_errors,omitempty"`
}

// WindowRow is one walk-forward window.
type WindowRow struct {
	Index           int     `json:"index"`
	TrainStartMs    int64   `json:"train_start_ms"`
	TestStartMs     int64   `json:"test_start_ms"`
	TestEndMs       int64   `json:"test_end_ms"`
	TrainDrawdown   float64 `json:"train_drawdown_pct"`
	TestCalmar      float64 `json:"test_calmar"`
	TestSharpe      float64 `json:"test_sharpe"`
	TestTrades      int     `json:"test_trades"`
	Excluded        bool    `json:"excluded"`
	ExclusionReason string  `json:"exclusion_reason,omitempty"`
}

// SensitivitySection summarizes the parameter sweep.
type SensitivitySection struct {
	Status     string         `json:"status"`
	ValidRuns  int            `json:"valid_runs"`
	MinPValue  float64        `json:"min_p_value"`
	MinParam   string         `json:"min_param,omitempty"`
	Breaches   []string       `json:"breaches,omitempty"`
	Variations []VariationRow `json:"variations"`
}

// VariationRow is one perturbed parameter set.
type VariationRow struct {
	Param      string  `json:"param"`
	Value      float64 `json:"value"`
	Windows    int     `json:"windows"`
	MeanCalmar float64 `json:"mean_calmar"`
	Error      string  `json:"error,omitempty"`
}

// TradeRow is one closed trade.
type TradeRow struct {
	TradeID    string  `json:"trade_id"`
	Side       string  `json:"side"`
	EntryTime  int64   `json:"entry_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitTime   int64   `json:"exit_time"`
	ExitPrice  float64 `json:"exit_price"`
	ExitReason string  `json:"exit_reason"`
	Quantity   float64 `json:"quantity"`
	PnL        float64 `json:"pnl"`
	ReturnPct  float64 `json:"return_pct"`
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
