package fillmodel

import (
	"math"

	"github.com/shopspring/decimal"

	"execution-lab/internal/domain"
)

// splitGranularity is the number of sizing units a notional is divided into
// when no lot size is configured.
const splitGranularity = 200

// Split is one clip of a partitioned order.
type Split struct {
	Index    int
	Notional float64
	Estimate Estimate
}

// OptimalOrderSplit partitions notional into at most maxSplits clips of at
// least minSplitSize each.
//
// Clips are sized one at a time against the depth left on the consumed side
// after the earlier clips. Each clip takes the size that minimizes its own
// cost plus the cost of spreading the remainder evenly over the clips still
// to come. Cost is the expected slippage plus the mid-price move caused by
// earlier clips. Ties go to the larger, earlier clip. With LotNotional set,
// clips are whole lots and sub-lot dust joins the first clip. The minimum is
// enforced after rounding by reducing the clip count.
func (m *Model) OptimalOrderSplit(
	side domain.Side,
	notional float64,
	snap *domain.OrderBookSnapshot,
	volEst float64,
	maxSplits int,
	minSplitSize float64,
) []Split {
	if notional <= 0 {
		return nil
	}
	if maxSplits < 1 {
		maxSplits = 1
	}

	n := maxSplits
	if minSplitSize > 0 {
		fit := int(notional / minSplitSize)
		if fit < 1 {
			fit = 1
		}
		if fit < n {
			n = fit
		}
	}

	total := decimal.NewFromFloat(notional)
	var unit decimal.Decimal
	var units int64
	if m.params.LotNotional > 0 {
		unit = decimal.NewFromFloat(m.params.LotNotional)
		units = total.Div(unit).Floor().IntPart()
	} else {
		unit = total.Div(decimal.NewFromInt(splitGranularity))
		units = splitGranularity
	}
	if units < 1 {
		return m.priceSplits(side, []float64{notional}, snap, volEst)
	}

	minUnits := int64(1)
	if minSplitSize > 0 {
		minUnits = decimal.NewFromFloat(minSplitSize).Div(unit).Ceil().IntPart()
		if minUnits < 1 {
			minUnits = 1
		}
	}
	if fit := units / minUnits; fit < int64(n) {
		n = int(fit)
	}
	if n <= 1 {
		return m.priceSplits(side, []float64{notional}, snap, volEst)
	}

	dust := total.Sub(unit.Mul(decimal.NewFromInt(units))).InexactFloat64()
	counts := m.sizeClips(side, snap, volEst, unit.InexactFloat64(), dust, units, minUnits, n)

	sizes := make([]decimal.Decimal, len(counts))
	assigned := decimal.Zero
	for i, c := range counts {
		sizes[i] = unit.Mul(decimal.NewFromInt(c))
		assigned = assigned.Add(sizes[i])
	}
	sizes[0] = sizes[0].Add(total.Sub(assigned))

	clips := make([]float64, len(sizes))
	for i, s := range sizes {
		clips[i] = s.InexactFloat64()
	}
	return m.priceSplits(side, clips, snap, volEst)
}

// sizeClips returns the unit count of each of n clips.
func (m *Model) sizeClips(
	side domain.Side,
	snap *domain.OrderBookSnapshot,
	volEst, unit, dust float64,
	units, minUnits int64,
	n int,
) []int64 {
	ref := snap.MidPrice()
	counts := make([]int64, 0, n)
	book := snap
	remaining := units

	for i := 0; i < n; i++ {
		left := int64(n - i)
		if left == 1 {
			counts = append(counts, remaining)
			break
		}
		extra := 0.0
		if i == 0 {
			extra = dust
		}

		best, bestCost := int64(-1), math.Inf(1)
		for k := remaining - (left-1)*minUnits; k >= minUnits; k-- {
			clip := float64(k)*unit + extra
			cost := m.clipCost(side, clip, book, volEst, ref)
			next := consume(book, side, clip)
			each := float64(remaining-k) * unit / float64(left-1)
			for j := int64(1); j < left; j++ {
				cost += m.clipCost(side, each, next, volEst, ref)
				next = consume(next, side, each)
			}
			if cost < bestCost-1e-12 {
				best, bestCost = k, cost
			}
		}

		counts = append(counts, best)
		book = consume(book, side, float64(best)*unit+extra)
		remaining -= best
	}
	return counts
}

// clipCost is the adverse cost, in notional, of executing clip against book,
// measured from the reference mid of the untouched book.
func (m *Model) clipCost(side domain.Side, clip float64, book *domain.OrderBookSnapshot, volEst, ref float64) float64 {
	if clip <= 0 {
		return 0
	}
	slip := m.ExpectedSlippage(side, clip, book, volEst)
	shift := 0.0
	if ref > 0 {
		shift = math.Max(0, side.Sign()*(book.MidPrice()-ref)/ref)
	}
	return clip * (slip + shift)
}

func (m *Model) priceSplits(side domain.Side, clips []float64, snap *domain.OrderBookSnapshot, volEst float64) []Split {
	splits := make([]Split, 0, len(clips))
	book := snap
	for i, clip := range clips {
		splits = append(splits, Split{
			Index:    i,
			Notional: clip,
			Estimate: m.FillProbability(side, clip, book, volEst),
		})
		book = consume(book, side, clip)
	}
	return splits
}

// consume returns a copy of snap with notional taken from the levels an order
// of side would hit, best price first. snap itself is not modified.
func consume(snap *domain.OrderBookSnapshot, side domain.Side, notional float64) *domain.OrderBookSnapshot {
	if snap == nil || notional <= 0 {
		return snap
	}
	levels := snap.Asks
	if side == domain.SideSell {
		levels = snap.Bids
	}

	rest := make([]domain.Level, 0, len(levels))
	left := notional
	for _, l := range levels {
		if left <= 0 || l.Price <= 0 {
			rest = append(rest, l)
			continue
		}
		value := l.Price * l.Qty
		if left >= value {
			left -= value
			continue
		}
		rest = append(rest, domain.Level{Price: l.Price, Qty: l.Qty - left/l.Price})
		left = 0
	}

	out := *snap
	if side == domain.SideSell {
		out.Bids = rest
	} else {
		out.Asks = rest
	}
	return &out
}
