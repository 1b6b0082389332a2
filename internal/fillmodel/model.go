// Package fillmodel estimates fill probability and slippage of an order
// against a visible order book.
package fillmodel

import (
	"math"

	"execution-lab/internal/domain"
)

// ImpactType selects the market-impact curve.
type ImpactType string

// Impact curves.
const (
	ImpactLinear      ImpactType = "linear"
	ImpactExponential ImpactType = "exponential"
)

// Params configures the fill model.
type Params struct {
	ImpactType        ImpactType `yaml:"impact_type"`
	Alpha             float64    `yaml:"alpha"`                // impact coefficient on utilization
	Beta              float64    `yaml:"beta"`                 // volatility coefficient
	FillDecay         float64    `yaml:"fill_decay"`           // p = exp(-decay * utilization)
	MaxSlippagePct    float64    `yaml:"max_slippage_pct"`     // cap, in percent
	NoBookSlippageBps float64    `yaml:"no_book_slippage_bps"` // fixed fallback slippage
	LotNotional       float64    `yaml:"lot_notional"`         // split rounding granularity, 0 = none
}

// DefaultParams returns the default fill model parameters.
func DefaultParams() Params {
	return Params{
		ImpactType:        ImpactLinear,
		Alpha:             0.1,
		Beta:              0.5,
		FillDecay:         1.0,
		MaxSlippagePct:    5.0,
		NoBookSlippageBps: 10,
	}
}

// Estimate is the model's view of a prospective fill.
type Estimate struct {
	FillProbability     float64
	TargetPrice         float64 // mid price (or reference price without a book)
	ExpectedPrice       float64
	ExpectedSlippagePct float64 // percent, adverse to the side
	ExpectedSlippageBps float64
	UtilizationRatio    float64 // notional / depth
	DepthMetric         float64 // notional depth on the consumed side
}

// Model is a pure, stateless fill estimator. Safe for concurrent use.
type Model struct {
	params Params
}

// New creates a Model. Unset impact type and cap fall back to defaults.
func New(p Params) *Model {
	def := DefaultParams()
	if p.ImpactType == "" {
		p.ImpactType = def.ImpactType
	}
	if p.MaxSlippagePct <= 0 {
		p.MaxSlippagePct = def.MaxSlippagePct
	}
	if p.FillDecay <= 0 {
		p.FillDecay = def.FillDecay
	}
	return &Model{params: p}
}

// Params returns the model parameters.
func (m *Model) Params() Params {
	return m.params
}

// FillProbability estimates fill probability and expected price for an order
// of the given notional against snap. Zero depth on the consumed side yields a
// zero-probability, maximal-slippage estimate rather than an error.
func (m *Model) FillProbability(side domain.Side, notional float64, snap *domain.OrderBookSnapshot, volEst float64) Estimate {
	target := snap.MidPrice()
	depth := snap.DepthNotional(side)
	if depth <= 0 || target <= 0 {
		return m.exhausted(side, target)
	}

	if notional < 0 {
		notional = 0
	}
	u := notional / depth

	slip := snap.SpreadPct()/2 + m.impact(u) + m.params.Beta*math.Max(volEst, 0)
	slip = math.Min(slip, m.params.MaxSlippagePct/100)

	p := math.Exp(-m.params.FillDecay * u)
	p = math.Max(0, math.Min(1, p))

	return Estimate{
		FillProbability:     p,
		TargetPrice:         target,
		ExpectedPrice:       target * (1 + side.Sign()*slip),
		ExpectedSlippagePct: slip * 100,
		ExpectedSlippageBps: slip * 10000,
		UtilizationRatio:    u,
		DepthMetric:         depth,
	}
}

// ExpectedSlippage returns the expected adverse slippage as a fraction of the target price.
func (m *Model) ExpectedSlippage(side domain.Side, notional float64, snap *domain.OrderBookSnapshot, volEst float64) float64 {
	return m.FillProbability(side, notional, snap, volEst).ExpectedSlippagePct / 100
}

// NoBookEstimate is the conservative estimate used when no snapshot is available:
// a certain fill at refPrice moved adversely by NoBookSlippageBps.
func (m *Model) NoBookEstimate(side domain.Side, refPrice float64) Estimate {
	slip := m.params.NoBookSlippageBps / 10000
	return Estimate{
		FillProbability:     1,
		TargetPrice:         refPrice,
		ExpectedPrice:       refPrice * (1 + side.Sign()*slip),
		ExpectedSlippagePct: slip * 100,
		ExpectedSlippageBps: m.params.NoBookSlippageBps,
	}
}

func (m *Model) impact(u float64) float64 {
	switch m.params.ImpactType {
	case ImpactExponential:
		return m.params.Alpha * math.Expm1(u)
	default:
		return m.params.Alpha * u
	}
}

func (m *Model) exhausted(side domain.Side, target float64) Estimate {
	slip := m.params.MaxSlippagePct / 100
	return Estimate{
		FillProbability:     0,
		TargetPrice:         target,
		ExpectedPrice:       target * (1 + side.Sign()*slip),
		ExpectedSlippagePct: m.params.MaxSlippagePct,
		ExpectedSlippageBps: slip * 10000,
		UtilizationRatio:    1,
	}
}
