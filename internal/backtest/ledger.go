package backtest

import (
	"math"

	"execution-lab/internal/domain"
)

// ledger is one equity projection: cash plus a signed quantity marked at the close.
type ledger struct {
	cash float64
	qty  float64 // + long, - short
}

func (l *ledger) apply(side domain.Side, qty, price, fee float64) {
	l.cash -= side.Sign()*qty*price + fee
	l.qty += side.Sign() * qty
}

func (l *ledger) equity(mark float64) float64 {
	return l.cash + l.qty*mark
}

// idealPrice is the frictionless price of a fill: the better of the reference
// and the realized price for the side.
func idealPrice(side domain.Side, ref, price float64) float64 {
	if ref <= 0 {
		return price
	}
	if side == domain.SideBuy {
		return math.Min(ref, price)
	}
	return math.Max(ref, price)
}
