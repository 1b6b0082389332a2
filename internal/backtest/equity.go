package backtest

import (
	"time"

	"execution-lab/internal/domain"
	"execution-lab/internal/lookup"
)

// Period is a return bucketing period.
type Period string

// Supported periods.
const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// PeriodReturn is the return of one calendar period.
type PeriodReturn struct {
	PeriodStart int64 // ms, UTC boundary
	Theoretical float64
	Realistic   float64
}

// EquityAtOrBefore returns the latest equity point at or before ts.
// It never extrapolates forward.
func EquityAtOrBefore(curve []domain.EquityPoint, ts int64) (domain.EquityPoint, bool) {
	p, err := lookup.EquityAtOrBefore(ts, curve)
	return p, err == nil
}

// PeriodReturns buckets the curve into calendar periods. Each period's return
// compares the equity at or before its end with the previous period's. A
// period without bars carries the last known equity and returns zero.
func PeriodReturns(curve []domain.EquityPoint, period Period) []PeriodReturn {
	if len(curve) < 2 {
		return nil
	}

	first := curve[0]
	last := curve[len(curve)-1].Timestamp
	prev := first

	var out []PeriodReturn
	for start := periodStart(first.Timestamp, period); start <= last; start = nextPeriod(start, period) {
		end := nextPeriod(start, period) - 1
		p, ok := EquityAtOrBefore(curve, end)
		if !ok {
			continue
		}
		out = append(out, PeriodReturn{
			PeriodStart: start,
			Theoretical: ratio(p.EquityTheoretical, prev.EquityTheoretical),
			Realistic:   ratio(p.EquityRealistic, prev.EquityRealistic),
		})
		prev = p
	}
	return out
}

func ratio(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return cur/prev - 1
}

func periodStart(ts int64, period Period) int64 {
	t := time.UnixMilli(ts).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7 // Monday start
		return day.AddDate(0, 0, -offset).UnixMilli()
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	default:
		return day.UnixMilli()
	}
}

func nextPeriod(start int64, period Period) int64 {
	t := time.UnixMilli(start).UTC()
	switch period {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7).UnixMilli()
	case PeriodMonthly:
		return t.AddDate(0, 1, 0).UnixMilli()
	default:
		return t.AddDate(0, 0, 1).UnixMilli()
	}
}
