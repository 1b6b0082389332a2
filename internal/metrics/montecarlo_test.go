package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mixedReturns() []float64 {
	out := make([]float64, 0, 60)
	for i := 0; i < 20; i++ {
		out = append(out, 0.02, -0.015, 0.005)
	}
	return out
}

func TestRiskOfRuin_Deterministic(t *testing.T) {
	opts := RuinOptions{Paths: 2000, Horizon: 250, RuinThresholdPct: 20, Seed: 42}

	a := RiskOfRuin(mixedReturns(), 10000, opts)
	b := RiskOfRuin(mixedReturns(), 10000, opts)

	assert.InDelta(t, a, b, 1e-6)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.LessOrEqual(t, a, 1.0)
}

func TestRiskOfRuin_Extremes(t *testing.T) {
	opts := RuinOptions{Paths: 100, RuinThresholdPct: 50, Seed: 1}

	assert.Equal(t, 0.0, RiskOfRuin([]float64{0.01, 0.02}, 10000, opts), "never losing cannot ruin")
	assert.Equal(t, 1.0, RiskOfRuin([]float64{-0.5}, 10000, opts), "every path halves on the first step")
	assert.Equal(t, 0.0, RiskOfRuin(nil, 10000, opts))
	assert.Equal(t, 0.0, RiskOfRuin([]float64{-0.5}, 0, opts))
}

func TestBootstrapCalmarCI_Deterministic(t *testing.T) {
	opts := BootstrapOptions{Resamples: 300, Confidence: 0.9, MinSamples: 10, Seed: 7}

	a, err := BootstrapCalmarCI(mixedReturns(), opts)
	require.NoError(t, err)
	b, err := BootstrapCalmarCI(mixedReturns(), opts)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a.Lower, a.Median)
	assert.LessOrEqual(t, a.Median, a.Upper)
	assert.LessOrEqual(t, a.Upper, DefaultMaxCalmar)
}

func TestBootstrapCalmarCI_NoDrawdown(t *testing.T) {
	returns := make([]float64, 30)
	for i := range returns {
		returns[i] = 0.001
	}

	ci, err := BootstrapCalmarCI(returns, BootstrapOptions{Resamples: 50, MinSamples: 10, MaxCalmar: 8, Seed: 3})
	require.NoError(t, err)

	assert.Equal(t, ConfidenceInterval{Lower: 8, Median: 8, Upper: 8}, ci)
}

func TestBootstrapCalmarCI_InsufficientData(t *testing.T) {
	_, err := BootstrapCalmarCI([]float64{0.01, 0.02}, BootstrapOptions{MinSamples: 10})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = BootstrapCalmarCI(nil, BootstrapOptions{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}
