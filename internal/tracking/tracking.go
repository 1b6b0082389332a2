// Package tracking measures the divergence between a theoretical and a
// realistic equity curve.
package tracking

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Options configures FromCurves.
type Options struct {
	BarsPerYear    float64 `yaml:"bars_per_year"`
	ThresholdBps   float64 `yaml:"threshold_bps"`
	InitialCapital float64 `yaml:"initial_capital"` // 0 uses the first theoretical value
}

// DefaultOptions returns daily-bar defaults with a 10 bps threshold.
func DefaultOptions() Options {
	return Options{BarsPerYear: 252, ThresholdBps: 10}
}

// Metrics summarizes tracking error = realistic - theoretical.
type Metrics struct {
	Points                     int
	RMSE                       float64
	MeanError                  float64
	StdError                   float64
	Correlation                float64
	AnnualizedTrackingError    float64
	AnnualizedTrackingErrorPct float64 // percent of initial capital
	MeanDivergenceBps          float64
	MaxDivergenceBps           float64
	P95DivergenceBps           float64
	PctBarsAboveThreshold      float64 // percent of points
	RMSEPctOfCapital           float64
}

// FromCurves computes tracking metrics over the common prefix of both curves.
// Empty input yields zero metrics; a single point yields zero metrics with
// correlation 1.
func FromCurves(theoretical, realistic []float64, opts Options) Metrics {
	def := DefaultOptions()
	if opts.BarsPerYear <= 0 {
		opts.BarsPerYear = def.BarsPerYear
	}
	if opts.ThresholdBps <= 0 {
		opts.ThresholdBps = def.ThresholdBps
	}

	n := min(len(theoretical), len(realistic))
	if n == 0 {
		return Metrics{}
	}
	if n == 1 {
		return Metrics{Points: 1, Correlation: 1}
	}
	theo := theoretical[:n]
	actual := realistic[:n]

	capital := opts.InitialCapital
	if capital <= 0 {
		capital = theo[0]
	}

	te := make([]float64, n)
	div := make([]float64, n)
	sq := 0.0
	above := 0
	for i := 0; i < n; i++ {
		te[i] = actual[i] - theo[i]
		sq += te[i] * te[i]
		if theo[i] != 0 {
			div[i] = math.Abs((theo[i] - actual[i]) / theo[i] * 10000)
		}
		if div[i] > opts.ThresholdBps {
			above++
		}
	}

	m := Metrics{
		Points:    n,
		RMSE:      math.Sqrt(sq / float64(n)),
		MeanError: stat.Mean(te, nil),
		StdError:  stat.StdDev(te, nil),
	}
	m.Correlation = correlation(theo, actual)
	m.AnnualizedTrackingError = m.StdError * math.Sqrt(opts.BarsPerYear)
	if capital > 0 {
		m.AnnualizedTrackingErrorPct = m.AnnualizedTrackingError / capital * 100
		m.RMSEPctOfCapital = m.RMSE / capital * 100
	}

	m.MeanDivergenceBps = stat.Mean(div, nil)
	sorted := append([]float64(nil), div...)
	sort.Float64s(sorted)
	m.MaxDivergenceBps = sorted[n-1]
	m.P95DivergenceBps = stat.Quantile(0.95, stat.LinInterp, sorted, nil)
	m.PctBarsAboveThreshold = float64(above) / float64(n) * 100
	return m
}

// correlation is Pearson's r. Two flat series correlate perfectly; a flat
// series against a moving one does not correlate.
func correlation(x, y []float64) float64 {
	vx := stat.Variance(x, nil)
	vy := stat.Variance(y, nil)
	switch {
	case vx == 0 && vy == 0:
		return 1
	case vx == 0 || vy == 0:
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
