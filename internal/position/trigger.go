package position

import (
	"math"

	"execution-lab/internal/domain"
)

// Trigger is a protective level hit within a bar.
type Trigger struct {
	Reason string  // domain.ExitReason*
	Level  float64 // the stop or target level
	Price  float64 // execution reference, the open on a gap through the level
}

// CheckTriggers reports whether bar touches the stop or the target of the open
// position. When both are touched the stop wins.
func (r *Rebalancer) CheckTriggers(bar domain.Bar) (Trigger, bool) {
	if !r.IsOpen() {
		return Trigger{}, false
	}
	p := r.pos

	stopReason := domain.ExitReasonStopLoss
	if p.Trailing {
		stopReason = domain.ExitReasonTrailingStop
	}

	if p.Side == domain.PositionShort {
		if p.StopLoss > 0 && bar.High >= p.StopLoss {
			return Trigger{Reason: stopReason, Level: p.StopLoss, Price: math.Max(p.StopLoss, bar.Open)}, true
		}
		if p.TakeProfit > 0 && bar.Low <= p.TakeProfit {
			return Trigger{Reason: domain.ExitReasonTakeProfit, Level: p.TakeProfit, Price: math.Min(p.TakeProfit, bar.Open)}, true
		}
		return Trigger{}, false
	}

	if p.StopLoss > 0 && bar.Low <= p.StopLoss {
		return Trigger{Reason: stopReason, Level: p.StopLoss, Price: math.Min(p.StopLoss, bar.Open)}, true
	}
	if p.TakeProfit > 0 && bar.High >= p.TakeProfit {
		return Trigger{Reason: domain.ExitReasonTakeProfit, Level: p.TakeProfit, Price: math.Max(p.TakeProfit, bar.Open)}, true
	}
	return Trigger{}, false
}
