package strategy

import (
	"context"
	"fmt"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
)

// TrailingStopStrategy enters at the close with an initial stop, trails the
// stop by a fixed share of the entry price and exits after MaxHoldBars.
// The engine moves the stop; the strategy only decides entry and max hold.
type TrailingStopStrategy struct {
	entryRules
	TrailPct       float64 // e.g. 0.10 = 10% of entry price
	InitialStopPct float64
	TakeProfitPct  float64 // 0 disables the target
	MaxHoldBars    int
}

// NewTrailingStopStrategy creates a new TrailingStopStrategy.
func NewTrailingStopStrategy(side domain.PositionSide, trailPct, initialStopPct, takeProfitPct float64, maxHoldBars, entryEveryBars int, size *float64) *TrailingStopStrategy {
	return &TrailingStopStrategy{
		entryRules:     entryRules{Side: side, EveryBars: entryEveryBars, Size: size},
		TrailPct:       trailPct,
		InitialStopPct: initialStopPct,
		TakeProfitPct:  takeProfitPct,
		MaxHoldBars:    maxHoldBars,
	}
}

// Name returns the strategy identifier including parameters.
func (s *TrailingStopStrategy) Name() string {
	return fmt.Sprintf("TRAILING_STOP_%s_trail%.0f_stop%.0f_%dbars",
		s.Side,
		s.TrailPct*100,
		s.InitialStopPct*100,
		s.MaxHoldBars)
}

// OnBar implements backtest.Strategy.
func (s *TrailingStopStrategy) OnBar(_ context.Context, bc *backtest.Context) (*backtest.Signal, error) {
	if bc.Position == nil {
		if s.canEnter(bc) {
			return s.enter(bc, s.InitialStopPct, s.TakeProfitPct, s.TrailPct), nil
		}
		return nil, nil
	}
	if bc.PendingOrders == 0 && barsHeld(bc) >= s.MaxHoldBars {
		return exitSignal(domain.ExitReasonMaxDuration), nil
	}
	return nil, nil
}

// Params implements Tunable.
func (s *TrailingStopStrategy) Params() map[string]float64 {
	return map[string]float64{
		"trail_pct":        s.TrailPct,
		"initial_stop_pct": s.InitialStopPct,
		"take_profit_pct":  s.TakeProfitPct,
		"max_hold_bars":    float64(s.MaxHoldBars),
	}
}

// WithParams implements Tunable.
func (s *TrailingStopStrategy) WithParams(p map[string]float64) (Tunable, error) {
	cp := *s
	var err error
	if cp.TrailPct, err = pctParam(p, "trail_pct", s.TrailPct, true); err != nil {
		return nil, err
	}
	if cp.InitialStopPct, err = pctParam(p, "initial_stop_pct", s.InitialStopPct, true); err != nil {
		return nil, err
	}
	if cp.TakeProfitPct, err = pctParam(p, "take_profit_pct", s.TakeProfitPct, false); err != nil {
		return nil, err
	}
	if cp.MaxHoldBars, err = intParam(p, "max_hold_bars", s.MaxHoldBars); err != nil {
		return nil, err
	}
	return &cp, nil
}

var _ Tunable = (*TrailingStopStrategy)(nil)
