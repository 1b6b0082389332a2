package orchestrator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// FixtureOptions shapes the synthetic market loaded by LoadFixtures.
type FixtureOptions struct {
	Symbol      string
	Venue       string
	From        int64 // first bar open, Unix ms
	To          int64 // last bar open is at or before To
	TimeframeMs int64
	StartPrice  float64
	Volatility  float64 // per-bar stddev of log returns
	Drift       float64 // per-bar mean of log returns
	Levels      int     // book levels per side; 0 skips snapshots
	LevelQty    float64
	Seed        uint64
}

// DefaultFixtureOptions returns hourly bars around 100 with a five level book.
func DefaultFixtureOptions(symbol string, from, to int64, seed uint64) FixtureOptions {
	return FixtureOptions{
		Symbol:      symbol,
		Venue:       "synthetic",
		From:        from,
		To:          to,
		TimeframeMs: 60 * 60 * 1000,
		StartPrice:  100,
		Volatility:  0.01,
		Drift:       0.0002,
		Levels:      5,
		LevelQty:    50,
		Seed:        seed,
	}
}

// LoadFixtures populates the bar and order-book stores with a seeded random
// walk so a campaign can run without external data. The same options always
// produce the same market.
func LoadFixtures(ctx context.Context, bars storage.BarStore, books storage.OrderBookStore, opts FixtureOptions) (int, error) {
	if opts.TimeframeMs <= 0 || opts.StartPrice <= 0 || opts.To < opts.From {
		return 0, fmt.Errorf("%w: fixture timeframe %d, price %g, range [%d, %d]",
			storage.ErrInvalidInput, opts.TimeframeMs, opts.StartPrice, opts.From, opts.To)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xdaa66d2c7ddf743f))
	var (
		outBars  []*domain.Bar
		outSnaps []*domain.OrderBookSnapshot
		price    = opts.StartPrice
	)
	for ts := opts.From; ts <= opts.To; ts += opts.TimeframeMs {
		open := price
		closePx := open * math.Exp(opts.Drift+opts.Volatility*rng.NormFloat64())
		wick := open * opts.Volatility * math.Abs(rng.NormFloat64()) / 2
		outBars = append(outBars, &domain.Bar{
			Symbol:    opts.Symbol,
			Timestamp: ts,
			Open:      open,
			High:      math.Max(open, closePx) + wick,
			Low:       math.Max(math.Min(open, closePx)-wick, closePx/2),
			Close:     closePx,
			Volume:    1000 * (1 + rng.Float64()),
		})
		if opts.Levels > 0 {
			outSnaps = append(outSnaps, syntheticBook(opts, ts, open))
		}
		price = closePx
	}

	if err := bars.InsertBulk(ctx, outBars); err != nil {
		return 0, fmt.Errorf("insert fixture bars: %w", err)
	}
	if len(outSnaps) > 0 {
		if err := books.InsertBulk(ctx, outSnaps); err != nil {
			return 0, fmt.Errorf("insert fixture snapshots: %w", err)
		}
	}
	return len(outBars), nil
}

// syntheticBook builds a symmetric book around mid with a 2 bps half spread
// and levels 5 bps apart.
func syntheticBook(opts FixtureOptions, ts int64, mid float64) *domain.OrderBookSnapshot {
	snap := &domain.OrderBookSnapshot{
		Symbol:    opts.Symbol,
		Venue:     opts.Venue,
		Timestamp: ts,
		Bids:      make([]domain.Level, opts.Levels),
		Asks:      make([]domain.Level, opts.Levels),
	}
	for i := 0; i < opts.Levels; i++ {
		off := (2 + 5*float64(i)) / 10000
		qty := opts.LevelQty * float64(i+1)
		snap.Bids[i] = domain.Level{Price: mid * (1 - off), Qty: qty}
		snap.Asks[i] = domain.Level{Price: mid * (1 + off), Qty: qty}
	}
	return snap
}
