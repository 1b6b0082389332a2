package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"execution-lab/internal/domain"
)

// TradeStats is the distribution of realistic trade returns of one run.
type TradeStats struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	PartialExits int

	ReturnMean   float64 // percent
	ReturnMedian float64
	ReturnP10    float64
	ReturnP25    float64
	ReturnP75    float64
	ReturnP90    float64
	ReturnMin    float64
	ReturnMax    float64
	ReturnStddev float64

	TotalPnL             float64
	TotalFees            float64
	ProfitFactor         float64 // gross profit / gross loss; 0 when there are no losses
	MaxPnLDrawdown       float64 // worst peak-to-trough of cumulative pnl
	MaxConsecutiveLosses int
}

// computeTradeStats calculates all statistics from a slice of trades.
// Trades are sorted by ExitTime ASC, TradeID ASC before computing
// order-dependent statistics (MaxPnLDrawdown, MaxConsecutiveLosses).
func computeTradeStats(trades []*domain.TradeRecord) *TradeStats {
	n := len(trades)
	if n == 0 {
		return &TradeStats{}
	}

	sorted := make([]*domain.TradeRecord, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ExitTime != sorted[j].ExitTime {
			return sorted[i].ExitTime < sorted[j].ExitTime
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	st := &TradeStats{TotalTrades: n}
	returns := make([]float64, n)
	pnls := make([]float64, n)
	grossProfit, grossLoss := 0.0, 0.0
	for i, t := range sorted {
		returns[i] = t.ReturnPct
		pnls[i] = t.PnLRealistic
		st.TotalPnL += t.PnLRealistic
		st.TotalFees += t.Fees
		if t.Partial {
			st.PartialExits++
		}
		if t.IsWin() {
			st.Wins++
			grossProfit += t.PnLRealistic
		} else {
			st.Losses++
			grossLoss -= t.PnLRealistic
		}
	}
	st.WinRate = computeWinRate(st.Wins, n)
	if grossLoss > 0 {
		st.ProfitFactor = grossProfit / grossLoss
	}

	sortedReturns := make([]float64, n)
	copy(sortedReturns, returns)
	sort.Float64s(sortedReturns)

	st.ReturnMean = stat.Mean(returns, nil)
	if n > 1 {
		st.ReturnStddev = stat.StdDev(returns, nil)
	}
	st.ReturnMedian = computePercentile(sortedReturns, 0.50)
	st.ReturnP10 = computePercentile(sortedReturns, 0.10)
	st.ReturnP25 = computePercentile(sortedReturns, 0.25)
	st.ReturnP75 = computePercentile(sortedReturns, 0.75)
	st.ReturnP90 = computePercentile(sortedReturns, 0.90)
	st.ReturnMin = sortedReturns[0]
	st.ReturnMax = sortedReturns[n-1]

	st.MaxPnLDrawdown = computeMaxDrawdown(pnls)
	st.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)
	return st
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative values.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range values {
		cumulative += v
		peak = math.Max(peak, cumulative)
		maxDrawdown = math.Max(maxDrawdown, peak-cumulative)
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds longest streak of pnl <= 0.
// Trades must be in chronological order.
func computeMaxConsecutiveLosses(trades []*domain.TradeRecord) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if !t.IsWin() {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
