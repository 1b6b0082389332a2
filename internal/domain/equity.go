package domain

import "math"

// EquityPoint pairs the theoretical and realistic equity at one bar close.
type EquityPoint struct {
	Timestamp           int64
	EquityTheoretical   float64
	EquityRealistic     float64
	EquityDivergencePct float64 // (realistic - theoretical) / |theoretical| * 100
}

// DivergencePct computes the divergence of realistic from theoretical in
// percent of |theoretical|. Positive means realistic is above theoretical,
// also when theoretical equity is negative.
func DivergencePct(theoretical, realistic float64) float64 {
	if theoretical == 0 {
		return 0
	}
	return (realistic - theoretical) / math.Abs(theoretical) * 100
}
