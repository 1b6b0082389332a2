package backtest

import (
	"context"
	"errors"
	"fmt"

	"execution-lab/internal/domain"
	"execution-lab/internal/order"
	"execution-lab/internal/position"
)

// Action represents a trade action.
type Action string

// Action constants.
const (
	ActionEnter        Action = "enter"
	ActionExit         Action = "exit"
	ActionStopLoss     Action = "stop_loss"
	ActionTakeProfit   Action = "take_profit"
	ActionTrailingStop Action = "trailing_stop"
	ActionAdjust       Action = "adjust"
)

// Signal is a strategy decision for the current bar. Optional fields are nil when unset.
type Signal struct {
	Action           Action
	Side             domain.Side // enter: BUY opens long, SELL opens short
	Kind             order.Kind  // enter: MARKET (default), LIMIT or STOP at EntryPrice
	EntryPrice       *float64
	StopLoss         *float64
	TakeProfit       *float64
	TrailingDistance *float64
	Size             *float64 // enter: quantity; adjust: +scale in / -scale out
	ExitReason       string
}

// Context is the read-only view handed to a strategy on every bar.
type Context struct {
	Symbol            string
	Bar               domain.Bar
	Index             int
	History           []domain.Bar // all bars so far, current bar last; do not modify
	Position          *position.Position
	PendingOrders     int
	Cash              float64
	EquityRealistic   float64
	EquityTheoretical float64
}

// Strategy defines hooks for backtest execution.
type Strategy interface {
	// OnBar is called for each bar in order.
	// Returns a trade signal or nil if no action.
	OnBar(ctx context.Context, bc *Context) (*Signal, error)

	// Name returns the strategy identifier.
	Name() string
}

// ErrInvalidSignal is matched by every *InvalidSignalError.
var ErrInvalidSignal = errors.New("invalid signal")

// InvalidSignalError reports a signal that does not fit the current position state.
type InvalidSignalError struct {
	Action Action
	Reason string
}

func (e *InvalidSignalError) Error() string {
	return fmt.Sprintf("invalid %q signal: %s", e.Action, e.Reason)
}

// Is reports ErrInvalidSignal.
func (e *InvalidSignalError) Is(target error) bool {
	return target == ErrInvalidSignal
}

func invalid(a Action, format string, args ...any) error {
	return &InvalidSignalError{Action: a, Reason: fmt.Sprintf(format, args...)}
}

// ValidateSignal checks sig against the open position (nil when flat).
func ValidateSignal(sig *Signal, pos *position.Position) error {
	if sig == nil {
		return invalid("", "nil signal")
	}
	open := pos != nil && pos.Size > 0

	levels := []struct {
		name string
		v    *float64
	}{
		{"entry_price", sig.EntryPrice},
		{"stop_loss", sig.StopLoss},
		{"take_profit", sig.TakeProfit},
		{"trailing_distance", sig.TrailingDistance},
	}
	for _, l := range levels {
		if l.v != nil && !(*l.v > 0) {
			return invalid(sig.Action, "%s must be positive, got %v", l.name, *l.v)
		}
	}

	switch sig.Action {
	case ActionEnter:
		if open {
			return invalid(sig.Action, "position already open")
		}
		if !sig.Side.Valid() {
			return invalid(sig.Action, "side is required")
		}
		if sig.EntryPrice == nil {
			return invalid(sig.Action, "entry_price is required")
		}
		switch sig.Kind {
		case "", order.KindMarket, order.KindLimit, order.KindStop:
		default:
			return invalid(sig.Action, "unknown order kind %q", sig.Kind)
		}
		if sig.Size != nil && !(*sig.Size > 0) {
			return invalid(sig.Action, "size must be positive, got %v", *sig.Size)
		}

	case ActionExit, ActionStopLoss, ActionTakeProfit:
		if !open {
			return invalid(sig.Action, "no open position")
		}

	case ActionTrailingStop:
		if !open {
			return invalid(sig.Action, "no open position")
		}
		if sig.TrailingDistance == nil {
			return invalid(sig.Action, "trailing_distance is required")
		}

	case ActionAdjust:
		if !open {
			return invalid(sig.Action, "no open position")
		}
		if sig.Size == nil || *sig.Size == 0 {
			return invalid(sig.Action, "non-zero size is required")
		}
		if *sig.Size < 0 && -*sig.Size > pos.Size {
			return invalid(sig.Action, "scale-out %v exceeds position size %v", -*sig.Size, pos.Size)
		}

	default:
		return invalid(sig.Action, "unknown action")
	}
	return nil
}
