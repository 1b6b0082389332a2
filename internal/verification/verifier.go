// Package verification checks that backtests are reproducible: two runs with
// the same inputs and seed must agree field by field, and stored trades must
// match a fresh replay.
package verification

import (
	"context"
	"fmt"
	"math"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between expected and actual values.
type FieldDivergence struct {
	Field    string
	Expected any
	Actual   any
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for a verified run.
type VerificationReport struct {
	RunID           string
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	MissingTrades   []string // stored but not replayed
	ExtraTrades     []string // replayed but not stored
	Results         []VerificationResult
}

// Match reports whether every stored trade was reproduced exactly.
func (r *VerificationReport) Match() bool {
	return r.DivergentTrades == 0 && len(r.MissingTrades) == 0 && len(r.ExtraTrades) == 0
}

// diff accumulates divergences under a field prefix.
type diff struct {
	prefix string
	out    []FieldDivergence
}

func (d *diff) add(field string, expected, actual any) {
	d.out = append(d.out, FieldDivergence{Field: d.prefix + field, Expected: expected, Actual: actual})
}

func (d *diff) str(field, a, b string) {
	if a != b {
		d.add(field, a, b)
	}
}

func (d *diff) int(field string, a, b int64) {
	if a != b {
		d.add(field, a, b)
	}
}

func (d *diff) float(field string, a, b float64) {
	if !floatEquals(a, b) {
		d.add(field, a, b)
	}
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	d := &diff{}
	compareTrades(d, stored, replayed)
	return d.out
}

func compareTrades(d *diff, a, b *domain.TradeRecord) {
	d.str("TradeID", a.TradeID, b.TradeID)
	d.str("RunID", a.RunID, b.RunID)
	d.str("StrategyID", a.StrategyID, b.StrategyID)
	d.str("Symbol", a.Symbol, b.Symbol)
	d.str("Side", string(a.Side), string(b.Side))
	d.float("Quantity", a.Quantity, b.Quantity)

	d.int("EntryTime", a.EntryTime, b.EntryTime)
	d.float("EntryPrice", a.EntryPrice, b.EntryPrice)
	d.float("EntryPriceTheoretical", a.EntryPriceTheoretical, b.EntryPriceTheoretical)

	d.int("ExitTime", a.ExitTime, b.ExitTime)
	d.float("ExitPrice", a.ExitPrice, b.ExitPrice)
	d.float("ExitPriceTheoretical", a.ExitPriceTheoretical, b.ExitPriceTheoretical)
	d.str("ExitReason", a.ExitReason, b.ExitReason)

	d.float("Fees", a.Fees, b.Fees)
	d.float("PnLTheoretical", a.PnLTheoretical, b.PnLTheoretical)
	d.float("PnLRealistic", a.PnLRealistic, b.PnLRealistic)
	d.float("ReturnPct", a.ReturnPct, b.ReturnPct)
	if a.Partial != b.Partial {
		d.add("Partial", a.Partial, b.Partial)
	}
}

// CompareResults compares two backtest results: identity, final equity,
// every trade, every equity point, execution stats and validation status.
func CompareResults(a, b *backtest.Result) []FieldDivergence {
	d := &diff{}
	d.str("RunID", a.RunID, b.RunID)
	d.float("FinalEquityTheoretical", a.FinalEquityTheoretical, b.FinalEquityTheoretical)
	d.float("FinalEquityRealistic", a.FinalEquityRealistic, b.FinalEquityRealistic)
	d.str("MetricsStatus", a.MetricsStatus, b.MetricsStatus)
	d.str("TemporalValidation.Status", a.TemporalValidation.Status, b.TemporalValidation.Status)

	d.int("ExecutionStats.PartialFills", int64(a.ExecutionStats.PartialFills), int64(b.ExecutionStats.PartialFills))
	d.int("ExecutionStats.RejectedOrders", int64(a.ExecutionStats.RejectedOrders), int64(b.ExecutionStats.RejectedOrders))
	d.int("ExecutionStats.OrderBookFallbackCount", int64(a.ExecutionStats.OrderBookFallbackCount), int64(b.ExecutionStats.OrderBookFallbackCount))
	d.float("TrackingError.AnnualizedTrackingErrorPct", a.TrackingError.AnnualizedTrackingErrorPct, b.TrackingError.AnnualizedTrackingErrorPct)

	d.int("len(Trades)", int64(len(a.Trades)), int64(len(b.Trades)))
	for i := range min(len(a.Trades), len(b.Trades)) {
		sub := &diff{prefix: fmt.Sprintf("Trades[%d].", i)}
		compareTrades(sub, a.Trades[i], b.Trades[i])
		d.out = append(d.out, sub.out...)
	}

	d.int("len(EquityCurve)", int64(len(a.EquityCurve)), int64(len(b.EquityCurve)))
	for i := range min(len(a.EquityCurve), len(b.EquityCurve)) {
		p, q := a.EquityCurve[i], b.EquityCurve[i]
		prefix := fmt.Sprintf("EquityCurve[%d].", i)
		d.int(prefix+"Timestamp", p.Timestamp, q.Timestamp)
		d.float(prefix+"EquityTheoretical", p.EquityTheoretical, q.EquityTheoretical)
		d.float(prefix+"EquityRealistic", p.EquityRealistic, q.EquityRealistic)
	}
	return d.out
}

// DeterminismReport is the outcome of running the same backtest twice.
type DeterminismReport struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
}

// VerifyDeterminism runs the backtest twice and compares the results.
// Run errors are returned as is.
func VerifyDeterminism(ctx context.Context, run func(ctx context.Context) (*backtest.Result, error)) (*DeterminismReport, error) {
	first, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("first run: %w", err)
	}
	second, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("second run: %w", err)
	}
	divs := CompareResults(first, second)
	return &DeterminismReport{RunID: first.RunID, Match: len(divs) == 0, Divergences: divs}, nil
}

// floatEquals compares two float64 values within FloatTolerance.
// NaN equals NaN so that undefined metrics compare as reproducible.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b || math.Abs(a-b) <= FloatTolerance
}
