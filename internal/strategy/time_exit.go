package strategy

import (
	"context"
	"fmt"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
)

// TimeExitStrategy enters at the close and exits after a fixed number of bars.
type TimeExitStrategy struct {
	entryRules
	HoldBars int
}

// NewTimeExitStrategy creates a new TimeExitStrategy.
func NewTimeExitStrategy(side domain.PositionSide, holdBars, entryEveryBars int, size *float64) *TimeExitStrategy {
	return &TimeExitStrategy{
		entryRules: entryRules{Side: side, EveryBars: entryEveryBars, Size: size},
		HoldBars:   holdBars,
	}
}

// Name returns the strategy identifier including parameters.
func (s *TimeExitStrategy) Name() string {
	return fmt.Sprintf("TIME_EXIT_%s_%dbars", s.Side, s.HoldBars)
}

// OnBar enters when flat and exits once the position has been held HoldBars bars.
func (s *TimeExitStrategy) OnBar(_ context.Context, bc *backtest.Context) (*backtest.Signal, error) {
	if bc.Position == nil {
		if s.canEnter(bc) {
			return s.enter(bc, 0, 0, 0), nil
		}
		return nil, nil
	}
	if bc.PendingOrders == 0 && barsHeld(bc) >= s.HoldBars {
		return exitSignal(domain.ExitReasonTimeExit), nil
	}
	return nil, nil
}

// Params implements Tunable.
func (s *TimeExitStrategy) Params() map[string]float64 {
	return map[string]float64{"hold_bars": float64(s.HoldBars)}
}

// WithParams implements Tunable.
func (s *TimeExitStrategy) WithParams(p map[string]float64) (Tunable, error) {
	hold, err := intParam(p, "hold_bars", s.HoldBars)
	if err != nil {
		return nil, err
	}
	cp := *s
	cp.HoldBars = hold
	return &cp, nil
}

var _ Tunable = (*TimeExitStrategy)(nil)
