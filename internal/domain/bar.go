package domain

// Bar is one OHLCV candle. Timestamp marks the bar open in Unix milliseconds.
type Bar struct {
	Symbol    string
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// RangeVolatility returns (high-low)/close, the per-bar volatility proxy
// used by the fill model when no external estimate is supplied.
func (b Bar) RangeVolatility() float64 {
	if b.Close <= 0 || b.High < b.Low {
		return 0
	}
	return (b.High - b.Low) / b.Close
}
