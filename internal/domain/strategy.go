package domain

// StrategyConfig represents strategy configuration parameters.
type StrategyConfig struct {
	StrategyType string `yaml:"type"` // "TIME_EXIT" | "TRAILING_STOP"

	// Common
	EntryEveryBars *int     `yaml:"entry_every_bars"` // bars between re-entries once flat
	Side           string   `yaml:"side"`             // "LONG" | "SHORT"
	PositionSize   *float64 `yaml:"position_size"`

	// TIME_EXIT parameters
	HoldBars *int `yaml:"hold_bars"`

	// TRAILING_STOP parameters
	TrailPct       *float64 `yaml:"trail_pct"`
	InitialStopPct *float64 `yaml:"initial_stop_pct"`
	TakeProfitPct  *float64 `yaml:"take_profit_pct"`
	MaxHoldBars    *int     `yaml:"max_hold_bars"`
}

// Strategy type constants
const (
	StrategyTypeTimeExit     = "TIME_EXIT"
	StrategyTypeTrailingStop = "TRAILING_STOP"
)
