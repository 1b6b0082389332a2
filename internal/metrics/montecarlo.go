package metrics

import (
	"errors"
	"math/rand/v2"
	"sort"
)

// ErrInsufficientData is returned when a resampling estimate has too few samples.
var ErrInsufficientData = errors.New("insufficient samples")

// newRand returns a PCG generator fully determined by seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// BootstrapOptions configures BootstrapCalmarCI.
type BootstrapOptions struct {
	Resamples      int     `yaml:"resamples"`
	Confidence     float64 `yaml:"confidence"`
	MinSamples     int     `yaml:"min_samples"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
	MaxCalmar      float64 `yaml:"max_calmar"`
	Seed           uint64  `yaml:"seed"`
}

// DefaultBootstrapOptions returns the defaults for daily returns.
func DefaultBootstrapOptions() BootstrapOptions {
	return BootstrapOptions{
		Resamples:      1000,
		Confidence:     0.95,
		MinSamples:     20,
		PeriodsPerYear: 252,
		MaxCalmar:      DefaultMaxCalmar,
	}
}

// ConfidenceInterval is a two-sided percentile interval.
type ConfidenceInterval struct {
	Lower  float64
	Median float64
	Upper  float64
}

// BootstrapCalmarCI resamples returns with replacement and reports the
// percentile interval of the Calmar ratio. The same seed always yields the
// same interval.
func BootstrapCalmarCI(returns []float64, opts BootstrapOptions) (ConfidenceInterval, error) {
	d := DefaultBootstrapOptions()
	if opts.Resamples <= 0 {
		opts.Resamples = d.Resamples
	}
	if opts.Confidence <= 0 || opts.Confidence >= 1 {
		opts.Confidence = d.Confidence
	}
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = d.PeriodsPerYear
	}
	n := len(returns)
	if n == 0 || n < opts.MinSamples {
		return ConfidenceInterval{}, ErrInsufficientData
	}

	rng := newRand(opts.Seed)
	years := float64(n) / opts.PeriodsPerYear
	sample := make([]float64, n)
	calmars := make([]float64, opts.Resamples)
	for i := range calmars {
		for j := range sample {
			sample[j] = returns[rng.IntN(n)]
		}
		eq := equityFromReturns(sample)
		calmars[i] = Calmar(CAGR(1, eq[n], years), MaxDrawdownPct(eq), opts.MaxCalmar)
	}
	sort.Float64s(calmars)

	tail := (1 - opts.Confidence) / 2
	return ConfidenceInterval{
		Lower:  computePercentile(calmars, tail),
		Median: computePercentile(calmars, 0.5),
		Upper:  computePercentile(calmars, 1-tail),
	}, nil
}

// RuinOptions configures RiskOfRuin.
type RuinOptions struct {
	Paths            int     `yaml:"paths"`
	Horizon          int     `yaml:"horizon"`            // steps per path; 0 uses len(returns)
	RuinThresholdPct float64 `yaml:"ruin_threshold_pct"` // drawdown from the starting equity that counts as ruin
	Seed             uint64  `yaml:"seed"`
}

// DefaultRuinOptions returns 10000 paths and a 50% ruin threshold.
func DefaultRuinOptions() RuinOptions {
	return RuinOptions{Paths: 10000, RuinThresholdPct: 50}
}

// RiskOfRuin estimates the probability that equity falls to the ruin level
// within the horizon, drawing per-period returns with replacement.
// Identical inputs and seed give identical results.
func RiskOfRuin(returns []float64, equity float64, opts RuinOptions) float64 {
	d := DefaultRuinOptions()
	if opts.Paths <= 0 {
		opts.Paths = d.Paths
	}
	if opts.RuinThresholdPct <= 0 {
		opts.RuinThresholdPct = d.RuinThresholdPct
	}
	n := len(returns)
	if n == 0 || equity <= 0 {
		return 0
	}
	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = n
	}

	rng := newRand(opts.Seed)
	ruinLevel := equity * (1 - opts.RuinThresholdPct/100)
	ruined := 0
	for p := 0; p < opts.Paths; p++ {
		e := equity
		for h := 0; h < horizon; h++ {
			e *= 1 + returns[rng.IntN(n)]
			if e <= ruinLevel {
				ruined++
				break
			}
		}
	}
	return float64(ruined) / float64(opts.Paths)
}
