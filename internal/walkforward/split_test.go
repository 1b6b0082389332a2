package walkforward

import (
	"errors"
	"testing"
)

func TestSplit_Ratios(t *testing.T) {
	s, err := Split(0, 100*DayMs, DefaultSplitConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := Splits{
		Train:      Range{Start: 0, End: 60 * DayMs},
		Validation: Range{Start: 60 * DayMs, End: 80 * DayMs},
		OOS:        Range{Start: 80 * DayMs, End: 100 * DayMs},
	}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}

func TestSplit_OOSDays(t *testing.T) {
	cfg := DefaultSplitConfig()
	cfg.OOSDays = 10
	s, err := Split(0, 100*DayMs, cfg)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if s.OOS.Start != 90*DayMs || s.OOS.End != 100*DayMs {
		t.Errorf("OOS = %+v, want last 10 days", s.OOS)
	}

	// OOS never overlaps validation
	cfg.OOSDays = 50
	s, err = Split(0, 100*DayMs, cfg)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if s.OOS.Start != s.Validation.End {
		t.Errorf("OOS start %d, want validation end %d", s.OOS.Start, s.Validation.End)
	}
}

func TestSplit_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  SplitConfig
		end  int64
		want error
	}{
		{"zero train", SplitConfig{TrainRatio: 0, ValRatio: 0.5, OOSRatio: 0.5}, DayMs, ErrInvalidSplit},
		{"sum above one", SplitConfig{TrainRatio: 0.6, ValRatio: 0.3, OOSRatio: 0.3}, DayMs, ErrInvalidSplit},
		{"negative oos days", SplitConfig{TrainRatio: 0.6, ValRatio: 0.2, OOSRatio: 0.2, OOSDays: -1}, DayMs, ErrInvalidSplit},
		{"empty range", DefaultSplitConfig(), 0, ErrRangeTooShort},
		{"no oos", SplitConfig{TrainRatio: 0.8, ValRatio: 0.2}, DayMs, ErrRangeTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(0, tt.end, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateWindows(t *testing.T) {
	windows, err := GenerateWindows(0, 200*DayMs, 90, 30)
	if err != nil {
		t.Fatalf("GenerateWindows: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Index != i {
			t.Errorf("window %d has index %d", i, w.Index)
		}
		if w.Train.End != w.Test.Start {
			t.Errorf("window %d: test does not follow train", i)
		}
		if w.Test.End > 200*DayMs {
			t.Errorf("window %d: test ends after range", i)
		}
		if i > 0 && w.Test.Start != windows[i-1].Test.End {
			t.Errorf("window %d: test ranges not contiguous", i)
		}
	}
	if windows[2].Train.Start != 60*DayMs {
		t.Errorf("last train start = %d, want %d", windows[2].Train.Start, 60*DayMs)
	}
}

func TestGenerateWindows_Errors(t *testing.T) {
	if _, err := GenerateWindows(0, 100*DayMs, 90, 30); !errors.Is(err, ErrRangeTooShort) {
		t.Errorf("expected ErrRangeTooShort, got %v", err)
	}
	if _, err := GenerateWindows(0, 100*DayMs, 0, 30); !errors.Is(err, ErrInvalidSplit) {
		t.Errorf("expected ErrInvalidSplit, got %v", err)
	}
}

func TestRange(t *testing.T) {
	r := Range{Start: 0, End: 2 * DayMs}
	if r.Last() != 2*DayMs-1 {
		t.Errorf("Last = %d", r.Last())
	}
	if r.Days() != 2 {
		t.Errorf("Days = %v", r.Days())
	}
}
