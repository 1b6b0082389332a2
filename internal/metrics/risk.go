package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultMaxCalmar caps the Calmar ratio of runs without drawdown.
const DefaultMaxCalmar = 10.0

// CAGR returns the compound annual growth rate in percent.
// A wiped-out account returns -100.
func CAGR(startEquity, endEquity, years float64) float64 {
	if startEquity <= 0 || years <= 0 {
		return 0
	}
	if endEquity <= 0 {
		return -100
	}
	return (math.Pow(endEquity/startEquity, 1/years) - 1) * 100
}

// MaxDrawdownPct returns the worst peak-to-trough decline of an equity curve
// in percent of the running peak.
func MaxDrawdownPct(equity []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			worst = math.Max(worst, (peak-e)/peak*100)
		}
	}
	return worst
}

// Calmar returns CAGR over max drawdown, both in percent, capped at maxCalmar.
// A run without drawdown scores maxCalmar when it grew and 0 otherwise.
func Calmar(cagrPct, maxDrawdownPct, maxCalmar float64) float64 {
	if maxCalmar <= 0 {
		maxCalmar = DefaultMaxCalmar
	}
	if maxDrawdownPct <= 0 {
		if cagrPct > 0 {
			return maxCalmar
		}
		return 0
	}
	return math.Min(cagrPct/maxDrawdownPct, maxCalmar)
}

// Sharpe returns the annualized Sharpe ratio of per-period returns with a
// zero risk-free rate. Flat or too short series return 0.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// equityFromReturns compounds returns onto a starting equity of 1.
// The result has len(returns)+1 points.
func equityFromReturns(returns []float64) []float64 {
	eq := make([]float64, len(returns)+1)
	eq[0] = 1
	for i, r := range returns {
		eq[i+1] = eq[i] * (1 + r)
	}
	return eq
}

// SizeReduction returns the position-size multiplier for a risk of ruin.
// Below the ceiling the size is kept; above it the size shrinks proportionally
// but never below floor.
func SizeReduction(ruin, ceiling, floor float64) float64 {
	if ruin <= ceiling || ruin <= 0 {
		return 1
	}
	if ceiling <= 0 {
		return floor
	}
	return math.Max(floor, ceiling/ruin)
}
