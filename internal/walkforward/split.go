// Package walkforward splits a date range into train, validation and
// out-of-sample periods and runs rolling walk-forward windows.
package walkforward

import (
	"errors"
	"fmt"
	"math"
)

// DayMs is one day in milliseconds.
const DayMs = int64(24 * 60 * 60 * 1000)

var (
	// ErrRangeTooShort is returned when a range cannot hold the requested periods.
	ErrRangeTooShort = errors.New("date range too short")

	// ErrInvalidSplit is returned for non-positive or inconsistent split parameters.
	ErrInvalidSplit = errors.New("invalid split configuration")
)

// Range is a half-open time range [Start, End) in Unix milliseconds.
type Range struct {
	Start int64
	End   int64
}

// Last returns the last millisecond inside the range, for inclusive lookups.
func (r Range) Last() int64 { return r.End - 1 }

// Days returns the range length in days.
func (r Range) Days() float64 { return float64(r.End-r.Start) / float64(DayMs) }

// SplitConfig configures Split.
type SplitConfig struct {
	TrainRatio float64 `yaml:"train_ratio"`
	ValRatio   float64 `yaml:"val_ratio"`
	OOSRatio   float64 `yaml:"oos_ratio"`
	OOSDays    int     `yaml:"oos_days"` // when > 0, takes priority over OOSRatio
}

// DefaultSplitConfig returns a 60/20/20 split.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{TrainRatio: 0.6, ValRatio: 0.2, OOSRatio: 0.2}
}

// Splits holds the three consecutive periods.
type Splits struct {
	Train      Range
	Validation Range
	OOS        Range
}

// Split divides [start, end) by ratio. With OOSDays set, the OOS period is
// the last OOSDays of the range, clamped so it never starts before the end
// of validation; any time between validation and OOS stays unused.
func Split(start, end int64, cfg SplitConfig) (Splits, error) {
	if cfg.TrainRatio <= 0 || cfg.ValRatio < 0 || cfg.OOSRatio < 0 || cfg.OOSDays < 0 {
		return Splits{}, fmt.Errorf("%w: ratios %v/%v/%v oos_days %d",
			ErrInvalidSplit, cfg.TrainRatio, cfg.ValRatio, cfg.OOSRatio, cfg.OOSDays)
	}
	if sum := cfg.TrainRatio + cfg.ValRatio + cfg.OOSRatio; math.Abs(sum-1) > 1e-9 {
		return Splits{}, fmt.Errorf("%w: ratios sum to %v", ErrInvalidSplit, sum)
	}
	total := end - start
	if total < 3 {
		return Splits{}, fmt.Errorf("%w: [%d, %d)", ErrRangeTooShort, start, end)
	}

	trainEnd := start + int64(math.Round(float64(total)*cfg.TrainRatio))
	valEnd := trainEnd + int64(math.Round(float64(total)*cfg.ValRatio))
	oosStart := valEnd
	if cfg.OOSDays > 0 {
		oosStart = max(valEnd, end-int64(cfg.OOSDays)*DayMs)
	}
	if oosStart >= end || trainEnd <= start {
		return Splits{}, fmt.Errorf("%w: no room for out-of-sample period", ErrRangeTooShort)
	}

	return Splits{
		Train:      Range{Start: start, End: trainEnd},
		Validation: Range{Start: trainEnd, End: valEnd},
		OOS:        Range{Start: oosStart, End: end},
	}, nil
}

// Window is one rolling (train, test) pair.
type Window struct {
	Index int
	Train Range
	Test  Range
}

// GenerateWindows builds rolling windows over [start, end). Each window
// trains on trainDays followed by testDays of test; windows slide forward by
// testDays so consecutive test ranges never overlap. Every test range ends
// at or before end.
func GenerateWindows(start, end int64, trainDays, testDays int) ([]Window, error) {
	if trainDays <= 0 || testDays <= 0 {
		return nil, fmt.Errorf("%w: train_days=%d test_days=%d", ErrInvalidSplit, trainDays, testDays)
	}
	train := int64(trainDays) * DayMs
	test := int64(testDays) * DayMs

	var windows []Window
	for s := start; s+train+test <= end; s += test {
		windows = append(windows, Window{
			Index: len(windows),
			Train: Range{Start: s, End: s + train},
			Test:  Range{Start: s + train, End: s + train + test},
		})
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %d+%d days do not fit in %.1f days",
			ErrRangeTooShort, trainDays, testDays, Range{Start: start, End: end}.Days())
	}
	return windows, nil
}
