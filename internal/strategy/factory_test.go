package strategy

import (
	"errors"
	"testing"

	"execution-lab/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestFromConfig_TimeExit(t *testing.T) {
	cfg := domain.StrategyConfig{
		StrategyType:   domain.StrategyTypeTimeExit,
		Side:           "SHORT",
		HoldBars:       intPtr(12),
		EntryEveryBars: intPtr(4),
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	te, ok := s.(*TimeExitStrategy)
	if !ok {
		t.Fatalf("expected *TimeExitStrategy, got %T", s)
	}
	if te.HoldBars != 12 || te.EveryBars != 4 || te.Side != domain.PositionShort {
		t.Errorf("unexpected strategy %+v", te)
	}
}

func TestFromConfig_TrailingStop(t *testing.T) {
	cfg := domain.StrategyConfig{
		StrategyType:   domain.StrategyTypeTrailingStop,
		TrailPct:       ptr(0.05),
		InitialStopPct: ptr(0.10),
		MaxHoldBars:    intPtr(60),
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	ts, ok := s.(*TrailingStopStrategy)
	if !ok {
		t.Fatalf("expected *TrailingStopStrategy, got %T", s)
	}
	if ts.Side != domain.PositionLong {
		t.Errorf("default side = %s, want LONG", ts.Side)
	}
	if ts.TakeProfitPct != 0 {
		t.Errorf("take profit should default to disabled")
	}
	if ts.Name() != "TRAILING_STOP_LONG_trail5_stop10_60bars" {
		t.Errorf("unexpected name %s", ts.Name())
	}
}

func TestFromConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.StrategyConfig
		want error
	}{
		{"unknown type", domain.StrategyConfig{StrategyType: "MOMENTUM"}, ErrUnknownStrategyType},
		{"missing hold", domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeExit}, ErrMissingHoldBars},
		{"missing trail", domain.StrategyConfig{StrategyType: domain.StrategyTypeTrailingStop, InitialStopPct: ptr(0.1), MaxHoldBars: intPtr(5)}, ErrMissingTrailPct},
		{"missing stop", domain.StrategyConfig{StrategyType: domain.StrategyTypeTrailingStop, TrailPct: ptr(0.1), MaxHoldBars: intPtr(5)}, ErrMissingInitialStopPct},
		{"missing max hold", domain.StrategyConfig{StrategyType: domain.StrategyTypeTrailingStop, TrailPct: ptr(0.1), InitialStopPct: ptr(0.1)}, ErrMissingMaxHoldBars},
		{"bad side", domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeExit, Side: "FLAT", HoldBars: intPtr(1)}, ErrInvalidParams},
		{"zero hold", domain.StrategyConfig{StrategyType: domain.StrategyTypeTimeExit, HoldBars: intPtr(0)}, ErrInvalidParams},
		{"trail out of range", domain.StrategyConfig{StrategyType: domain.StrategyTypeTrailingStop, TrailPct: ptr(1.2), InitialStopPct: ptr(0.1), MaxHoldBars: intPtr(5)}, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
