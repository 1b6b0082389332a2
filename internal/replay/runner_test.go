package replay

import (
	"context"
	"errors"
	"testing"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage/memory"
)

// collectingHandler collects bars for verification.
type collectingHandler struct {
	bars   []*domain.Bar
	ended  bool
	failAt int64
}

func (h *collectingHandler) OnBar(_ context.Context, bar *domain.Bar) error {
	if h.failAt != 0 && bar.Timestamp == h.failAt {
		return errors.New("handler failure")
	}
	h.bars = append(h.bars, bar)
	return nil
}

func (h *collectingHandler) OnEnd(_ context.Context) error {
	h.ended = true
	return nil
}

func seed(t *testing.T, ts ...int64) *memory.BarStore {
	t.Helper()
	store := memory.NewBarStore()
	bars := make([]*domain.Bar, len(ts))
	for i, x := range ts {
		bars[i] = &domain.Bar{Symbol: "BTCUSDT", Timestamp: x, Open: 1, High: 1, Low: 1, Close: 1}
	}
	if err := store.InsertBulk(context.Background(), bars); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestRunner_StreamsInRange(t *testing.T) {
	runner := NewRunner(seed(t, 1000, 2000, 3000, 4000), nil)
	h := &collectingHandler{}

	if err := runner.Run(context.Background(), "BTCUSDT", 2000, 3000, h); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(h.bars) != 2 || h.bars[0].Timestamp != 2000 || h.bars[1].Timestamp != 3000 {
		t.Errorf("unexpected bars: %+v", h.bars)
	}
	if !h.ended {
		t.Errorf("OnEnd was not called")
	}
}

func TestRunner_KeepsStoredOrder(t *testing.T) {
	store := seed(t, 1000, 3000)
	store.AppendRaw(domain.Bar{Symbol: "BTCUSDT", Timestamp: 2000})
	h := &collectingHandler{}

	if err := NewRunner(store, nil).Run(context.Background(), "BTCUSDT", 0, 5000, h); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := []int64{h.bars[0].Timestamp, h.bars[1].Timestamp, h.bars[2].Timestamp}
	want := []int64{1000, 3000, 2000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bars reordered: got %v, want %v", got, want)
		}
	}
}

func TestRunner_HandlerErrorAborts(t *testing.T) {
	h := &collectingHandler{failAt: 2000}

	err := NewRunner(seed(t, 1000, 2000, 3000), nil).Run(context.Background(), "BTCUSDT", 0, 5000, h)

	if err == nil {
		t.Fatal("expected error")
	}
	if len(h.bars) != 1 || h.ended {
		t.Errorf("replay continued after error: bars=%d ended=%v", len(h.bars), h.ended)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRunner(seed(t, 1000), nil).Run(ctx, "BTCUSDT", 0, 5000, &collectingHandler{})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_Empty(t *testing.T) {
	h := &collectingHandler{}
	if err := NewRunner(memory.NewBarStore(), nil).Run(context.Background(), "BTCUSDT", 0, 5000, h); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(h.bars) != 0 || !h.ended {
		t.Errorf("bars=%d ended=%v", len(h.bars), h.ended)
	}
}

func TestVerifyOrdering(t *testing.T) {
	tests := []struct {
		name    string
		ts      []int64
		wantErr bool
	}{
		{"empty", nil, false},
		{"single", []int64{1}, false},
		{"increasing", []int64{1, 2, 5}, false},
		{"duplicate", []int64{1, 2, 2}, true},
		{"backwards", []int64{1, 3, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bars := make([]*domain.Bar, len(tt.ts))
			for i, x := range tt.ts {
				bars[i] = &domain.Bar{Timestamp: x}
			}
			err := VerifyOrdering(bars)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOrdering) {
				t.Errorf("error does not wrap ErrInvalidOrdering: %v", err)
			}
		})
	}
}
