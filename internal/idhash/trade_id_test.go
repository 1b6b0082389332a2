package idhash

import (
	"testing"

	"github.com/google/uuid"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name      string
		runID     string
		symbol    string
		entryTime int64
		exitTime  int64
		seq       int
		wantLen   int // hash length should be 64
	}{
		{
			name:      "basic trade",
			runID:     "run-1",
			symbol:    "BTCUSDT",
			entryTime: 1704067200000,
			exitTime:  1704070800000,
			seq:       0,
			wantLen:   64,
		},
		{
			name:      "partial close",
			runID:     "run-2",
			symbol:    "ETHUSDT",
			entryTime: 1704067200000,
			exitTime:  1704067500000,
			seq:       3,
			wantLen:   64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.runID, tt.symbol, tt.entryTime, tt.exitTime, tt.seq)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			got2 := ComputeTradeID(tt.runID, tt.symbol, tt.entryTime, tt.exitTime, tt.seq)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("run", "BTC", 1000, 2000, 0)

	if base == ComputeTradeID("other", "BTC", 1000, 2000, 0) {
		t.Error("Different run should produce different hash")
	}
	if base == ComputeTradeID("run", "ETH", 1000, 2000, 0) {
		t.Error("Different symbol should produce different hash")
	}
	if base == ComputeTradeID("run", "BTC", 1001, 2000, 0) {
		t.Error("Different entry time should produce different hash")
	}
	if base == ComputeTradeID("run", "BTC", 1000, 2000, 1) {
		t.Error("Different seq should produce different hash")
	}
}

func TestComputeRunID(t *testing.T) {
	a := ComputeRunID("TRAILING_STOP", "BTCUSDT", 0, 1000, 42)
	b := ComputeRunID("TRAILING_STOP", "BTCUSDT", 0, 1000, 42)
	c := ComputeRunID("TRAILING_STOP", "BTCUSDT", 0, 1000, 43)

	if a != b {
		t.Errorf("ComputeRunID() not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("Different seed should produce different run id")
	}

	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("run id is not a uuid: %v", err)
	}
	if parsed.Version() != 5 {
		t.Errorf("run id version = %d, want 5", parsed.Version())
	}
}

func TestComputeStageRunID(t *testing.T) {
	plain := ComputeRunID("TIME_EXIT", "BTCUSDT", 0, 1000, 42)

	if got := ComputeStageRunID("TIME_EXIT", "BTCUSDT", "", 0, 1000, 42); got != plain {
		t.Errorf("empty stage = %s, want %s", got, plain)
	}
	train := ComputeStageRunID("TIME_EXIT", "BTCUSDT", "window-1/train", 0, 1000, 42)
	test := ComputeStageRunID("TIME_EXIT", "BTCUSDT", "window-0/test", 0, 1000, 42)
	if train == test || train == plain || test == plain {
		t.Errorf("stages over one range share a run id: train=%s test=%s plain=%s", train, test, plain)
	}
	if train != ComputeStageRunID("TIME_EXIT", "BTCUSDT", "window-1/train", 0, 1000, 42) {
		t.Error("ComputeStageRunID() not deterministic")
	}
}

func TestComputeOrderID(t *testing.T) {
	if ComputeOrderID("run", 1) == ComputeOrderID("run", 2) {
		t.Error("Different seq should produce different order id")
	}
	if ComputeOrderID("run", 1) != ComputeOrderID("run", 1) {
		t.Error("ComputeOrderID() not deterministic")
	}
}
