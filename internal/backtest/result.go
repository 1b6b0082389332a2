package backtest

import (
	"execution-lab/internal/domain"
	"execution-lab/internal/execution"
	"execution-lab/internal/position"
	"execution-lab/internal/tracking"
)

// Temporal validation statuses.
const (
	TemporalPassed = "PASSED"
	TemporalFailed = "FAILED_TEMPORAL_VALIDATION"
)

// Metrics statuses. Anything but MetricsOK marks the result non-authoritative.
const (
	MetricsOK                 = "OK"
	MetricsIntegrityViolation = "INTEGRITY_VIOLATION"
	MetricsNonAuthoritative   = "NON_AUTHORITATIVE"
)

// TemporalValidation summarizes gaps in the bar stream.
type TemporalValidation struct {
	Status              string
	BarCount            int
	TimeframeMs         int64
	GapCount            int
	SignificantGapCount int
	MissingBars         int
	GapRatio            float64
}

// ExecutionStats is the execution summary of a run.
type ExecutionStats struct {
	PartialFills           int
	RejectedOrders         int // refused orders plus orders cancelled without any fill
	OrderBookFallbackCount int
	Detail                 execution.Stats
}

// ReturnsPerPeriod holds period returns on UTC boundaries.
type ReturnsPerPeriod struct {
	Daily   []PeriodReturn
	Weekly  []PeriodReturn
	Monthly []PeriodReturn
}

// InvalidSignal records a skipped signal.
type InvalidSignal struct {
	Timestamp int64
	Action    Action
	Reason    string
}

// IntegrityViolation is an equity point where realistic exceeded theoretical beyond tolerance.
type IntegrityViolation struct {
	Timestamp     int64
	DivergencePct float64
}

// Result is the output of one backtest run.
type Result struct {
	RunID        string
	StrategyName string
	Symbol       string
	StartTime    int64
	EndTime      int64

	InitialCapital         float64
	FinalEquityTheoretical float64
	FinalEquityRealistic   float64

	Trades            []*domain.TradeRecord
	EquityTheoretical []float64
	EquityRealistic   []float64
	EquityCurve       []domain.EquityPoint
	ReturnsPerPeriod  ReturnsPerPeriod

	ExecutionStats     ExecutionStats
	TemporalValidation TemporalValidation
	TrackingError      tracking.Metrics
	MetricsStatus      string

	NoTradeEvents       []domain.NoTradeEvent
	OrderBookWarnings   []execution.OrderBookWarning
	RebalanceEvents     []position.StopRebalanceEvent
	InvalidSignals      []InvalidSignal
	IntegrityViolations []IntegrityViolation
}

// Authoritative reports whether the result passed temporal and integrity checks.
func (r *Result) Authoritative() bool {
	return r.MetricsStatus == MetricsOK
}
