package metrics

import (
	"math"

	"execution-lab/internal/backtest"
)

const (
	msPerDay   = 24 * 60 * 60 * 1000
	daysPerYr  = 365.25
	daysPerMon = daysPerYr / 12
)

// CampaignMetrics is the aggregate view of one campaign run consumed by the guardrails.
type CampaignMetrics struct {
	RunID         string
	StrategyName  string
	Symbol        string
	StartTime     int64
	EndTime       int64
	OOSDays       float64
	HistoryMonths float64
	Authoritative bool

	TradeCount         int
	CAGRTheoreticalPct float64
	CAGRRealisticPct   float64
	CAGRDivergencePct  float64 // |theoretical - realistic|
	MaxDrawdownPct     float64 // realistic curve
	Calmar             float64
	Sharpe             float64

	CalmarCI          ConfidenceInterval
	CalmarCIAvailable bool

	RiskOfRuin    float64
	SizeReduction float64

	TrackingErrorPct float64 // annualized, percent of capital
	RMSEPctOfCapital float64

	Trades TradeStats
}

// SummaryOptions configures Summarize.
type SummaryOptions struct {
	PeriodsPerYear float64          `yaml:"periods_per_year"` // of the daily return series
	MaxCalmar      float64          `yaml:"max_calmar"`
	Bootstrap      BootstrapOptions `yaml:"bootstrap"`
	Ruin           RuinOptions      `yaml:"ruin"`
	RuinCeiling    float64          `yaml:"ruin_ceiling"`
	SizeFloor      float64          `yaml:"size_floor"`
	HistoryStart   int64            `yaml:"history_start"` // start of the data history (ms); 0 uses the run start
}

// DefaultSummaryOptions returns daily-return defaults with a 0.2 size floor.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{
		PeriodsPerYear: 252,
		MaxCalmar:      DefaultMaxCalmar,
		Bootstrap:      DefaultBootstrapOptions(),
		Ruin:           DefaultRuinOptions(),
		RuinCeiling:    0.05,
		SizeFloor:      0.2,
	}
}

// WithSeed returns a copy of o whose bootstrap and ruin simulations use seed.
func (o SummaryOptions) WithSeed(seed uint64) SummaryOptions {
	o.Bootstrap.Seed = seed
	o.Ruin.Seed = seed
	return o
}

// Summarize turns a backtest result into campaign metrics.
func Summarize(res *backtest.Result, opts SummaryOptions) *CampaignMetrics {
	d := DefaultSummaryOptions()
	if opts.PeriodsPerYear <= 0 {
		opts.PeriodsPerYear = d.PeriodsPerYear
	}
	if opts.MaxCalmar <= 0 {
		opts.MaxCalmar = d.MaxCalmar
	}
	if opts.SizeFloor <= 0 {
		opts.SizeFloor = d.SizeFloor
	}
	opts.Bootstrap.PeriodsPerYear = opts.PeriodsPerYear
	opts.Bootstrap.MaxCalmar = opts.MaxCalmar

	m := &CampaignMetrics{
		RunID:         res.RunID,
		StrategyName:  res.StrategyName,
		Symbol:        res.Symbol,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		Authoritative: res.Authoritative(),
		TradeCount:    len(res.Trades),
		Trades:        *computeTradeStats(res.Trades),
	}

	days := float64(res.EndTime-res.StartTime) / msPerDay
	m.OOSDays = days
	historyStart := opts.HistoryStart
	if historyStart == 0 || historyStart > res.StartTime {
		historyStart = res.StartTime
	}
	m.HistoryMonths = float64(res.EndTime-historyStart) / msPerDay / daysPerMon

	years := days / daysPerYr
	m.CAGRTheoreticalPct = CAGR(res.InitialCapital, res.FinalEquityTheoretical, years)
	m.CAGRRealisticPct = CAGR(res.InitialCapital, res.FinalEquityRealistic, years)
	m.CAGRDivergencePct = math.Abs(m.CAGRTheoreticalPct - m.CAGRRealisticPct)
	m.MaxDrawdownPct = MaxDrawdownPct(res.EquityRealistic)
	m.Calmar = Calmar(m.CAGRRealisticPct, m.MaxDrawdownPct, opts.MaxCalmar)

	daily := make([]float64, len(res.ReturnsPerPeriod.Daily))
	for i, r := range res.ReturnsPerPeriod.Daily {
		daily[i] = r.Realistic
	}
	m.Sharpe = Sharpe(daily, opts.PeriodsPerYear)

	if ci, err := BootstrapCalmarCI(daily, opts.Bootstrap); err == nil {
		m.CalmarCI = ci
		m.CalmarCIAvailable = true
	}

	m.RiskOfRuin = RiskOfRuin(daily, res.FinalEquityRealistic, opts.Ruin)
	m.SizeReduction = SizeReduction(m.RiskOfRuin, opts.RuinCeiling, opts.SizeFloor)

	m.TrackingErrorPct = res.TrackingError.AnnualizedTrackingErrorPct
	m.RMSEPctOfCapital = res.TrackingError.RMSEPctOfCapital
	return m
}
