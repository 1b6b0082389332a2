package strategy

import (
	"context"
	"math"
	"testing"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
	"execution-lab/internal/position"
	"execution-lab/internal/replay"
	"execution-lab/internal/storage/memory"
)

const minute = int64(60_000)

func history(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: "BTCUSDT", Timestamp: int64(i+1) * minute, Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func barContext(hist []domain.Bar, pos *position.Position, pending int) *backtest.Context {
	return &backtest.Context{
		Symbol:        "BTCUSDT",
		Bar:           hist[len(hist)-1],
		Index:         len(hist) - 1,
		History:       hist,
		Position:      pos,
		PendingOrders: pending,
	}
}

func openedAt(bar int) *position.Position {
	return &position.Position{Symbol: "BTCUSDT", Side: domain.PositionLong, Size: 1, AvgEntry: 100, OpenedAt: int64(bar+1) * minute}
}

func TestTimeExitStrategy_EnterAndExit(t *testing.T) {
	s := NewTimeExitStrategy(domain.PositionLong, 2, 1, nil)
	ctx := context.Background()

	sig, err := s.OnBar(ctx, barContext(history(100), nil, 0))
	if err != nil || sig == nil {
		t.Fatalf("expected entry signal, got %v, %v", sig, err)
	}
	if sig.Action != backtest.ActionEnter || sig.Side != domain.SideBuy || *sig.EntryPrice != 100 {
		t.Errorf("unexpected entry %+v", sig)
	}
	if sig.StopLoss != nil || sig.TrailingDistance != nil {
		t.Errorf("time exit should not set levels")
	}

	// opened on bar 1; bar 2 is the first bar held
	sig, _ = s.OnBar(ctx, barContext(history(100, 100, 101), openedAt(1), 0))
	if sig != nil {
		t.Errorf("expected hold after 1 bar, got %+v", sig)
	}
	sig, _ = s.OnBar(ctx, barContext(history(100, 100, 101, 102), openedAt(1), 0))
	if sig == nil || sig.Action != backtest.ActionExit || sig.ExitReason != domain.ExitReasonTimeExit {
		t.Errorf("expected TIME_EXIT after 2 bars, got %+v", sig)
	}

	// no duplicate exit while an order is working
	sig, _ = s.OnBar(ctx, barContext(history(100, 100, 101, 102), openedAt(1), 1))
	if sig != nil {
		t.Errorf("expected nil with pending exit, got %+v", sig)
	}
}

func TestEntryRules_EveryBarsAndPending(t *testing.T) {
	s := NewTimeExitStrategy(domain.PositionLong, 1, 3, nil)
	ctx := context.Background()

	for n := 1; n <= 7; n++ {
		sig, _ := s.OnBar(ctx, barContext(history(make([]float64, n)...), nil, 0))
		wantEntry := (n-1)%3 == 0
		if (sig != nil) != wantEntry {
			t.Errorf("index %d: entry=%v, want %v", n-1, sig != nil, wantEntry)
		}
	}

	if sig, _ := s.OnBar(ctx, barContext(history(100), nil, 1)); sig != nil {
		t.Errorf("expected no entry while an order is pending")
	}
}

func TestTrailingStopStrategy_Levels(t *testing.T) {
	tests := []struct {
		name                 string
		side                 domain.PositionSide
		wantSide             domain.Side
		wantStop, wantTarget float64
	}{
		{"long", domain.PositionLong, domain.SideBuy, 90, 120},
		{"short", domain.PositionShort, domain.SideSell, 110, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTrailingStopStrategy(tt.side, 0.05, 0.10, 0.20, 10, 1, nil)
			sig, err := s.OnBar(context.Background(), barContext(history(100), nil, 0))
			if err != nil || sig == nil {
				t.Fatalf("expected entry, got %v, %v", sig, err)
			}
			if sig.Side != tt.wantSide {
				t.Errorf("side = %s, want %s", sig.Side, tt.wantSide)
			}
			if math.Abs(*sig.StopLoss-tt.wantStop) > 1e-9 {
				t.Errorf("stop = %v, want %v", *sig.StopLoss, tt.wantStop)
			}
			if math.Abs(*sig.TakeProfit-tt.wantTarget) > 1e-9 {
				t.Errorf("target = %v, want %v", *sig.TakeProfit, tt.wantTarget)
			}
			if math.Abs(*sig.TrailingDistance-5) > 1e-9 {
				t.Errorf("trail = %v, want 5", *sig.TrailingDistance)
			}
			if err := backtest.ValidateSignal(sig, nil); err != nil {
				t.Errorf("signal does not validate: %v", err)
			}
		})
	}
}

func TestTrailingStopStrategy_MaxHold(t *testing.T) {
	s := NewTrailingStopStrategy(domain.PositionLong, 0.05, 0.10, 0, 3, 1, nil)
	sig, _ := s.OnBar(context.Background(), barContext(history(100, 100, 101, 102, 103), openedAt(1), 0))
	if sig == nil || sig.ExitReason != domain.ExitReasonMaxDuration {
		t.Errorf("expected MAX_DURATION exit, got %+v", sig)
	}
}

func TestWithParams(t *testing.T) {
	s := NewTrailingStopStrategy(domain.PositionLong, 0.05, 0.10, 0, 10, 1, nil)

	got, err := s.WithParams(map[string]float64{"trail_pct": 0.06, "max_hold_bars": 12.4, "unknown": 1})
	if err != nil {
		t.Fatalf("WithParams: %v", err)
	}
	p := got.Params()
	if p["trail_pct"] != 0.06 || p["max_hold_bars"] != 12 || p["initial_stop_pct"] != 0.10 {
		t.Errorf("unexpected params %v", p)
	}
	if s.TrailPct != 0.05 {
		t.Errorf("original mutated")
	}
	if got.Name() == s.Name() {
		t.Errorf("name should reflect parameters")
	}

	bad := []map[string]float64{
		{"trail_pct": 0},
		{"initial_stop_pct": 1.5},
		{"take_profit_pct": -0.1},
		{"max_hold_bars": 0},
	}
	for _, b := range bad {
		if _, err := s.WithParams(b); err == nil {
			t.Errorf("expected error for %v", b)
		}
	}

	te := NewTimeExitStrategy(domain.PositionLong, 5, 1, nil)
	if _, err := te.WithParams(map[string]float64{"hold_bars": 0.2}); err == nil {
		t.Errorf("expected error for hold_bars 0.2")
	}
}

func TestTimeExitStrategy_Backtest(t *testing.T) {
	store := memory.NewBarStore()
	bars := make([]*domain.Bar, 6)
	for i := range bars {
		bars[i] = &domain.Bar{Symbol: "BTCUSDT", Timestamp: int64(i+1) * minute, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	if err := store.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	runner := backtest.NewRunner(backtest.RunnerOptions{
		ReplayRunner: replay.NewRunner(store, nil),
		Config:       backtest.DefaultConfig(),
	})

	res, err := runner.Run(context.Background(), "BTCUSDT", 0, math.MaxInt64, NewTimeExitStrategy(domain.PositionLong, 2, 1, nil), 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(res.Trades))
	}
	first := res.Trades[0]
	if first.ExitReason != domain.ExitReasonTimeExit {
		t.Errorf("first exit reason = %s", first.ExitReason)
	}
	if first.EntryTime != 2*minute || first.ExitTime != 5*minute {
		t.Errorf("first trade %d -> %d", first.EntryTime, first.ExitTime)
	}
	if res.Trades[1].ExitReason != domain.ExitReasonEndOfData {
		t.Errorf("second exit reason = %s", res.Trades[1].ExitReason)
	}
}
