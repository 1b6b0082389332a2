package backtest

import (
	"execution-lab/internal/execution"
	"execution-lab/internal/order"
	"execution-lab/internal/position"
	"execution-lab/internal/tracking"
)

// Config holds engine settings.
type Config struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	FeeRate         float64 `yaml:"fee_rate"`          // fraction of notional per fill
	PositionSizePct float64 `yaml:"position_size_pct"` // equity share per entry when the signal has no size
	SizeMultiplier  float64 `yaml:"size_multiplier"`   // applied to every entry quantity
	KeepOpenAtEnd   bool    `yaml:"keep_open_at_end"`

	// Temporal validation
	TimeframeMs            int64   `yaml:"timeframe_ms"` // 0 infers the smallest bar spacing
	GapThresholdMultiplier float64 `yaml:"gap_threshold_multiplier"`
	MaxGapRatio            float64 `yaml:"max_gap_ratio"`

	// Equity integrity
	DivergenceTolerancePct float64 `yaml:"divergence_tolerance_pct"`

	Order     order.Config     `yaml:"order"`
	Position  position.Config  `yaml:"position"`
	Execution execution.Config `yaml:"execution"`
	Tracking  tracking.Options `yaml:"tracking"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		InitialCapital:         10000,
		FeeRate:                0.001,
		PositionSizePct:        0.1,
		SizeMultiplier:         1.0,
		GapThresholdMultiplier: 2.0,
		MaxGapRatio:            0.05,
		DivergenceTolerancePct: 0.1,
		Order:                  order.DefaultConfig(),
		Position:               position.DefaultConfig(),
		Execution:              execution.DefaultConfig(),
		Tracking:               tracking.DefaultOptions(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InitialCapital <= 0 {
		c.InitialCapital = def.InitialCapital
	}
	if c.FeeRate < 0 {
		c.FeeRate = 0
	}
	if c.PositionSizePct <= 0 {
		c.PositionSizePct = def.PositionSizePct
	}
	if c.SizeMultiplier <= 0 {
		c.SizeMultiplier = def.SizeMultiplier
	}
	if c.GapThresholdMultiplier <= 1 {
		c.GapThresholdMultiplier = def.GapThresholdMultiplier
	}
	if c.MaxGapRatio <= 0 {
		c.MaxGapRatio = def.MaxGapRatio
	}
	if c.DivergenceTolerancePct <= 0 {
		c.DivergenceTolerancePct = def.DivergenceTolerancePct
	}
	if c.Order.MaxWaitBars <= 0 {
		c.Order = def.Order
	}
	if c.Tracking.InitialCapital <= 0 {
		c.Tracking.InitialCapital = c.InitialCapital
	}
	return c
}
