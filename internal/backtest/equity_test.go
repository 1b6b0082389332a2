package backtest

import (
	"math"
	"testing"
	"time"

	"execution-lab/internal/domain"
)

func utcMs(y int, m time.Month, d, h int) int64 {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC).UnixMilli()
}

func point(ts int64, equity float64) domain.EquityPoint {
	return domain.EquityPoint{Timestamp: ts, EquityTheoretical: equity, EquityRealistic: equity}
}

func TestPeriodReturns(t *testing.T) {
	// 2024-01-01 is a Monday.
	curve := []domain.EquityPoint{
		point(utcMs(2024, 1, 1, 10), 100),
		point(utcMs(2024, 1, 1, 20), 110),
		point(utcMs(2024, 1, 3, 12), 121),
	}

	daily := PeriodReturns(curve, PeriodDaily)
	if len(daily) != 3 {
		t.Fatalf("daily periods = %d, want 3", len(daily))
	}
	want := []float64{0.1, 0, 0.1}
	for i, w := range want {
		if math.Abs(daily[i].Realistic-w) > 1e-12 || math.Abs(daily[i].Theoretical-w) > 1e-12 {
			t.Errorf("daily[%d] = %+v, want %v", i, daily[i], w)
		}
	}
	if daily[1].PeriodStart != utcMs(2024, 1, 2, 0) {
		t.Errorf("gap day start = %d", daily[1].PeriodStart)
	}

	for _, p := range []Period{PeriodWeekly, PeriodMonthly} {
		got := PeriodReturns(curve, p)
		if len(got) != 1 || math.Abs(got[0].Realistic-0.21) > 1e-12 {
			t.Errorf("%s returns = %+v", p, got)
		}
	}
}

func TestPeriodReturns_WeekStartsMonday(t *testing.T) {
	// Sunday then Monday fall in different weeks.
	curve := []domain.EquityPoint{
		point(utcMs(2024, 1, 7, 12), 100),
		point(utcMs(2024, 1, 8, 12), 105),
	}
	got := PeriodReturns(curve, PeriodWeekly)
	if len(got) != 2 {
		t.Fatalf("weekly periods = %d, want 2", len(got))
	}
	if got[0].PeriodStart != utcMs(2024, 1, 1, 0) || got[1].PeriodStart != utcMs(2024, 1, 8, 0) {
		t.Errorf("week starts = %d, %d", got[0].PeriodStart, got[1].PeriodStart)
	}
	if got[0].Realistic != 0 || math.Abs(got[1].Realistic-0.05) > 1e-12 {
		t.Errorf("weekly returns = %+v", got)
	}
}

func TestPeriodReturns_TooShort(t *testing.T) {
	if got := PeriodReturns([]domain.EquityPoint{point(1, 100)}, PeriodDaily); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestEquityAtOrBefore(t *testing.T) {
	curve := []domain.EquityPoint{point(1000, 100), point(2000, 110)}

	if _, ok := EquityAtOrBefore(curve, 999); ok {
		t.Error("expected no point before the curve starts")
	}
	if p, ok := EquityAtOrBefore(curve, 1999); !ok || p.Timestamp != 1000 {
		t.Errorf("got %+v ok=%v", p, ok)
	}
	if p, ok := EquityAtOrBefore(curve, 5000); !ok || p.Timestamp != 2000 {
		t.Errorf("must not extrapolate: got %+v", p)
	}
}

func TestIdealPrice(t *testing.T) {
	tests := []struct {
		side       domain.Side
		ref, price float64
		want       float64
	}{
		{domain.SideBuy, 100, 100.1, 100},
		{domain.SideBuy, 100, 99.5, 99.5},
		{domain.SideSell, 100, 99.9, 100},
		{domain.SideSell, 100, 100.4, 100.4},
		{domain.SideBuy, 0, 101, 101},
	}
	for _, tt := range tests {
		if got := idealPrice(tt.side, tt.ref, tt.price); got != tt.want {
			t.Errorf("idealPrice(%s, %v, %v) = %v, want %v", tt.side, tt.ref, tt.price, got, tt.want)
		}
	}
}
