package guardrail

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// anovaResult is a one-way analysis of variance across groups.
type anovaResult struct {
	F      float64
	PValue float64
	DFB    float64
	DFW    float64
}

// oneWayANOVA tests whether the group means differ. ok is false when the
// degrees of freedom leave the test undefined (fewer than two groups or no
// replicates within groups).
func oneWayANOVA(groups [][]float64) (anovaResult, bool) {
	k, n := 0, 0
	var all []float64
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		k++
		n += len(g)
		all = append(all, g...)
	}
	if k < 2 || n-k < 1 {
		return anovaResult{}, false
	}

	grand := stat.Mean(all, nil)
	ssb, ssw := 0.0, 0.0
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		mean := stat.Mean(g, nil)
		ssb += float64(len(g)) * (mean - grand) * (mean - grand)
		for _, x := range g {
			ssw += (x - mean) * (x - mean)
		}
	}

	res := anovaResult{DFB: float64(k - 1), DFW: float64(n - k)}
	switch {
	case ssw == 0 && ssb == 0:
		res.PValue = 1
	case ssw == 0:
		res.F = math.Inf(1)
		res.PValue = 0
	default:
		res.F = (ssb / res.DFB) / (ssw / res.DFW)
		res.PValue = distuv.F{D1: res.DFB, D2: res.DFW}.Survival(res.F)
	}
	return res, true
}
