package metrics

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCAGR(t *testing.T) {
	tests := []struct {
		name            string
		start, end, yrs float64
		want            float64
	}{
		{"two years", 10000, 12100, 2, 10},
		{"one year loss", 10000, 9000, 1, -10},
		{"wiped out", 10000, 0, 1, -100},
		{"zero duration", 10000, 11000, 0, 0},
		{"no capital", 0, 11000, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CAGR(tt.start, tt.end, tt.yrs); !near(got, tt.want) {
				t.Errorf("CAGR = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxDrawdownPct(t *testing.T) {
	if got := MaxDrawdownPct([]float64{100, 120, 90, 130, 117}); !near(got, 25) {
		t.Errorf("MaxDrawdownPct = %v, want 25", got)
	}
	if got := MaxDrawdownPct([]float64{100, 101, 102}); got != 0 {
		t.Errorf("rising curve drawdown = %v", got)
	}
}

func TestCalmar(t *testing.T) {
	tests := []struct {
		cagr, dd, want float64
	}{
		{20, 10, 2},
		{50, 1, 10},
		{5, 0, 10},
		{-5, 0, 0},
		{-10, 20, -0.5},
	}
	for _, tt := range tests {
		if got := Calmar(tt.cagr, tt.dd, 10); !near(got, tt.want) {
			t.Errorf("Calmar(%v, %v) = %v, want %v", tt.cagr, tt.dd, got, tt.want)
		}
	}
	if got := Calmar(100, 1, 0); got != DefaultMaxCalmar {
		t.Errorf("default cap not applied: %v", got)
	}
}

func TestSharpe(t *testing.T) {
	if got := Sharpe([]float64{0.01, 0.02, 0.03}, 252); !near(got, 2*math.Sqrt(252)) {
		t.Errorf("Sharpe = %v, want %v", got, 2*math.Sqrt(252))
	}
	if got := Sharpe([]float64{0.25, 0.25, 0.25}, 252); got != 0 {
		t.Errorf("flat Sharpe = %v", got)
	}
	if got := Sharpe([]float64{0.01}, 252); got != 0 {
		t.Errorf("short Sharpe = %v", got)
	}
}

func TestSizeReduction(t *testing.T) {
	tests := []struct {
		ruin, want float64
	}{
		{0.01, 1},
		{0.05, 1},
		{0.1, 0.5},
		{1, 0.2},
	}
	for _, tt := range tests {
		if got := SizeReduction(tt.ruin, 0.05, 0.2); !near(got, tt.want) {
			t.Errorf("SizeReduction(%v) = %v, want %v", tt.ruin, got, tt.want)
		}
	}
}
