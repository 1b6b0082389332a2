package execution

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"execution-lab/internal/domain"
	"execution-lab/internal/observability"
	"execution-lab/internal/order"
)

// Stats summarizes execution telemetry of one run.
type Stats struct {
	Attempts        int
	Fills           int // attempts that filled any quantity
	PartialFills    int // attempts that filled some but not all remaining quantity
	Filled          int // orders completely filled
	Cancelled       int
	Rejected        int // orders refused before reaching the book
	FallbackCount   int
	NoTradeCount    int
	WaitBarsP50     float64
	WaitBarsP95     float64
	SlippageBpsMean float64
	SlippageBpsP50  float64
	SlippageBpsP95  float64
}

// Tracker aggregates fill, cancel and no-trade telemetry for one run.
type Tracker struct {
	stats       Stats
	done        map[*order.Order]struct{}
	noTrades    []domain.NoTradeEvent
	warnings    []OrderBookWarning
	waitBars    []float64
	slippageBps []float64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{done: make(map[*order.Order]struct{})}
}

// Record accounts one attempt. Repeated attempts on an order that was already
// terminal are ignored.
func (t *Tracker) Record(o *order.Order, res *Result) {
	if _, ok := t.done[o]; ok {
		return
	}

	kind := string(o.Kind)
	t.stats.Attempts++
	observability.RecordOrderAttempt(kind)

	r := res.Order
	if r.NewFillQty > 0 {
		t.stats.Fills++
		if r.Status != order.StatusFilled {
			t.stats.PartialFills++
		}
	}

	if r.Status != order.StatusFilled && r.Status != order.StatusCancelled {
		return
	}
	t.done[o] = struct{}{}
	t.waitBars = append(t.waitBars, float64(o.Age()))
	if r.FilledQty > 0 {
		t.slippageBps = append(t.slippageBps, r.SlippageBps)
	}
	observability.RecordOrderCompleted(kind, string(r.Status), r.FilledQty > 0, r.SlippageBps)

	if r.Status == order.StatusFilled {
		t.stats.Filled++
		return
	}
	t.stats.Cancelled++
	if r.NoTrade != nil {
		t.noTrades = append(t.noTrades, *r.NoTrade)
	}
}

// RecordCancel accounts an order cancelled outside TryFill, e.g. by a position close.
func (t *Tracker) RecordCancel(o *order.Order, r order.Result) {
	if _, ok := t.done[o]; ok {
		return
	}
	t.done[o] = struct{}{}
	t.stats.Cancelled++
	t.waitBars = append(t.waitBars, float64(o.Age()))
	if r.NoTrade != nil {
		t.noTrades = append(t.noTrades, *r.NoTrade)
	}
	observability.RecordOrderCompleted(string(o.Kind), string(r.Status), r.FilledQty > 0, r.SlippageBps)
}

// RecordRejected accounts an order that could not be created.
func (t *Tracker) RecordRejected() {
	t.stats.Rejected++
}

// RecordFallback accounts a fill priced without an order book.
func (t *Tracker) RecordFallback(w OrderBookWarning) {
	t.stats.FallbackCount++
	t.warnings = append(t.warnings, w)
}

// NoTradeEvents returns a copy of the recorded no-trade events.
func (t *Tracker) NoTradeEvents() []domain.NoTradeEvent {
	return append([]domain.NoTradeEvent(nil), t.noTrades...)
}

// Warnings returns a copy of the recorded order-book warnings.
func (t *Tracker) Warnings() []OrderBookWarning {
	return append([]OrderBookWarning(nil), t.warnings...)
}

// Stats returns the aggregated counters and percentiles.
func (t *Tracker) Stats() Stats {
	s := t.stats
	s.NoTradeCount = len(t.noTrades)
	s.WaitBarsP50 = quantile(t.waitBars, 0.50)
	s.WaitBarsP95 = quantile(t.waitBars, 0.95)
	if len(t.slippageBps) > 0 {
		s.SlippageBpsMean = stat.Mean(t.slippageBps, nil)
	}
	s.SlippageBpsP50 = quantile(t.slippageBps, 0.50)
	s.SlippageBpsP95 = quantile(t.slippageBps, 0.95)
	return s
}

func quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}
