package domain

// NoTradeReason explains why an order ended without a complete fill.
type NoTradeReason string

// No-trade reasons.
const (
	NoTradeTimeout           NoTradeReason = "timeout"
	NoTradeInsufficientDepth NoTradeReason = "insufficient_depth"
	NoTradePriceMoved        NoTradeReason = "price_moved"
)

// NoTradeEvent records an order cancelled before it was completely filled.
type NoTradeEvent struct {
	OrderID      string
	RunID        string
	Symbol       string
	Timestamp    int64 // bar timestamp at cancellation (ms)
	Side         Side
	Kind         string
	TargetPrice  float64
	RequestedQty float64
	FilledQty    float64
	FilledRatio  float64
	Reason       NoTradeReason
	AgeBars      int
}
