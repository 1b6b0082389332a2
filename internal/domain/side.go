package domain

// Side is the direction of an order.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide is the direction of an open position.
type PositionSide string

// PositionSide constants.
const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// EntrySide returns the order side that opens or adds to the position.
func (p PositionSide) EntrySide() Side {
	if p == PositionShort {
		return SideSell
	}
	return SideBuy
}

// ExitSide returns the order side that reduces or closes the position.
func (p PositionSide) ExitSide() Side {
	return p.EntrySide().Opposite()
}

// Sign returns +1 for LONG and -1 for SHORT.
func (p PositionSide) Sign() float64 {
	if p == PositionShort {
		return -1
	}
	return 1
}

// PositionSideFor maps an entry order side to the position it opens.
func PositionSideFor(s Side) PositionSide {
	if s == SideSell {
		return PositionShort
	}
	return PositionLong
}
