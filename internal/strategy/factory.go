package strategy

import (
	"errors"

	"execution-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType   = errors.New("unknown strategy type")
	ErrMissingHoldBars       = errors.New("TIME_EXIT requires HoldBars")
	ErrMissingTrailPct       = errors.New("TRAILING_STOP requires TrailPct")
	ErrMissingInitialStopPct = errors.New("TRAILING_STOP requires InitialStopPct")
	ErrMissingMaxHoldBars    = errors.New("TRAILING_STOP requires MaxHoldBars")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Tunable, error) {
	side, err := parseSide(cfg.Side)
	if err != nil {
		return nil, err
	}
	every := 1
	if cfg.EntryEveryBars != nil {
		every = *cfg.EntryEveryBars
	}

	switch cfg.StrategyType {
	case domain.StrategyTypeTimeExit:
		if cfg.HoldBars == nil {
			return nil, ErrMissingHoldBars
		}
		s := NewTimeExitStrategy(side, *cfg.HoldBars, every, cfg.PositionSize)
		return s.WithParams(s.Params())

	case domain.StrategyTypeTrailingStop:
		if cfg.TrailPct == nil {
			return nil, ErrMissingTrailPct
		}
		if cfg.InitialStopPct == nil {
			return nil, ErrMissingInitialStopPct
		}
		if cfg.MaxHoldBars == nil {
			return nil, ErrMissingMaxHoldBars
		}
		var tp float64
		if cfg.TakeProfitPct != nil {
			tp = *cfg.TakeProfitPct
		}
		s := NewTrailingStopStrategy(side, *cfg.TrailPct, *cfg.InitialStopPct, tp, *cfg.MaxHoldBars, every, cfg.PositionSize)
		// round-trip through WithParams to validate ranges
		return s.WithParams(s.Params())

	default:
		return nil, ErrUnknownStrategyType
	}
}
