package domain

// Level is one price level of an order book.
type Level struct {
	Price float64
	Qty   float64
}

// OrderBookSnapshot is a point-in-time view of a venue's book.
// Bids are sorted by price descending, asks ascending.
// Snapshots are treated as immutable once loaded.
type OrderBookSnapshot struct {
	Symbol    string
	Venue     string
	Timestamp int64 // Unix ms
	Bids      []Level
	Asks      []Level
}

// BestBid returns the highest bid, or 0 if the bid side is empty.
func (s *OrderBookSnapshot) BestBid() float64 {
	if s == nil || len(s.Bids) == 0 {
		return 0
	}
	return s.Bids[0].Price
}

// BestAsk returns the lowest ask, or 0 if the ask side is empty.
func (s *OrderBookSnapshot) BestAsk() float64 {
	if s == nil || len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price
}

// MidPrice returns the midpoint of the touch.
// Falls back to whichever side exists when the book is one-sided.
func (s *OrderBookSnapshot) MidPrice() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	default:
		return ask
	}
}

// Spread returns ask - bid, or 0 when either side is empty.
func (s *OrderBookSnapshot) Spread() float64 {
	bid, ask := s.BestBid(), s.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return ask - bid
}

// SpreadPct returns the spread as a fraction of the mid price.
func (s *OrderBookSnapshot) SpreadPct() float64 {
	mid := s.MidPrice()
	if mid <= 0 {
		return 0
	}
	return s.Spread() / mid
}

// levels returns the side of the book an order of the given side consumes.
func (s *OrderBookSnapshot) levels(side Side) []Level {
	if s == nil {
		return nil
	}
	if side == SideBuy {
		return s.Asks
	}
	return s.Bids
}

// DepthNotional sums price*qty over the levels an order of side would consume.
func (s *OrderBookSnapshot) DepthNotional(side Side) float64 {
	total := 0.0
	for _, l := range s.levels(side) {
		total += l.Price * l.Qty
	}
	return total
}

// VisibleQty sums the quantity available to an order of side.
func (s *OrderBookSnapshot) VisibleQty(side Side) float64 {
	total := 0.0
	for _, l := range s.levels(side) {
		total += l.Qty
	}
	return total
}
