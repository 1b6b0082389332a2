package domain

// TradeRecord is one closed (or partially closed) round trip.
// Theoretical fields are the frictionless counterpart of the realistic fill.
type TradeRecord struct {
	TradeID    string // deterministic hash
	RunID      string
	StrategyID string
	Symbol     string
	Side       PositionSide
	Quantity   float64

	// Entry
	EntryTime             int64 // ms
	EntryPrice            float64
	EntryPriceTheoretical float64

	// Exit
	ExitTime             int64 // ms
	ExitPrice            float64
	ExitPriceTheoretical float64
	ExitReason           string

	// Costs and outcome
	Fees           float64
	PnLTheoretical float64
	PnLRealistic   float64
	ReturnPct      float64 // realistic pnl / entry notional * 100
	Partial        bool    // scale-out that left the position open
}

// Exit reason codes
const (
	ExitReasonSignal       = "SIGNAL"
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonTakeProfit   = "TAKE_PROFIT"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonScaleOut     = "SCALE_OUT"
	ExitReasonMaxDuration  = "MAX_DURATION"
	ExitReasonTimeExit     = "TIME_EXIT"
	ExitReasonEndOfData    = "END_OF_DATA"
)

// IsWin reports whether the realistic pnl is positive.
func (t *TradeRecord) IsWin() bool {
	return t.PnLRealistic > 0
}
