// Package strategy holds the bundled bar strategies. Strategies are
// stateless: everything they need is derived from the bar context, so one
// instance can drive concurrent runs.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
)

// ErrInvalidParams is returned by WithParams for out-of-range values.
var ErrInvalidParams = errors.New("invalid strategy parameters")

// Tunable is a strategy that exposes numeric parameters for sensitivity sweeps.
type Tunable interface {
	backtest.Strategy

	// Params returns the current parameter values by name.
	Params() map[string]float64

	// WithParams returns a copy with the named parameters replaced.
	// Unknown names are ignored.
	WithParams(p map[string]float64) (Tunable, error)
}

// entryRules are the entry settings shared by every strategy.
type entryRules struct {
	Side      domain.PositionSide
	EveryBars int      // enter only on bar indices divisible by EveryBars
	Size      *float64 // nil sizes by equity share
}

func (r entryRules) canEnter(bc *backtest.Context) bool {
	if bc.Position != nil || bc.PendingOrders > 0 {
		return false
	}
	every := max(r.EveryBars, 1)
	return bc.Index%every == 0
}

// enter builds a market entry at the bar close. Protective levels are
// percentages of the close.
func (r entryRules) enter(bc *backtest.Context, stopPct, targetPct, trailPct float64) *backtest.Signal {
	px := bc.Bar.Close
	sign := r.Side.Sign()
	sig := &backtest.Signal{
		Action:     backtest.ActionEnter,
		Side:       r.Side.EntrySide(),
		EntryPrice: ptr(px),
		Size:       r.Size,
	}
	if stopPct > 0 {
		sig.StopLoss = ptr(px * (1 - sign*stopPct))
	}
	if targetPct > 0 {
		sig.TakeProfit = ptr(px * (1 + sign*targetPct))
	}
	if trailPct > 0 {
		sig.TrailingDistance = ptr(px * trailPct)
	}
	return sig
}

// barsHeld counts bars after the position opened, the current bar included.
func barsHeld(bc *backtest.Context) int {
	if bc.Position == nil {
		return 0
	}
	opened := bc.Position.OpenedAt
	i := sort.Search(len(bc.History), func(i int) bool {
		return bc.History[i].Timestamp > opened
	})
	return len(bc.History) - i
}

func exitSignal(reason string) *backtest.Signal {
	return &backtest.Signal{Action: backtest.ActionExit, ExitReason: reason}
}

func ptr(v float64) *float64 { return &v }

func parseSide(s string) (domain.PositionSide, error) {
	switch s {
	case "", string(domain.PositionLong):
		return domain.PositionLong, nil
	case string(domain.PositionShort):
		return domain.PositionShort, nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrInvalidParams, s)
	}
}

// intParam reads an integer parameter, rounding to the nearest bar count.
func intParam(p map[string]float64, name string, cur int) (int, error) {
	v, ok := p[name]
	if !ok {
		return cur, nil
	}
	n := int(math.Round(v))
	if n < 1 {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidParams, name, v)
	}
	return n, nil
}

// pctParam reads a fraction parameter in [0, 1). Zero disables the level
// unless required is set.
func pctParam(p map[string]float64, name string, cur float64, required bool) (float64, error) {
	v, ok := p[name]
	if !ok {
		return cur, nil
	}
	if v < 0 || v >= 1 || (required && v == 0) {
		return 0, fmt.Errorf("%w: %s=%v", ErrInvalidParams, name, v)
	}
	return v, nil
}
