package backtest

import (
	"errors"
	"fmt"
)

// ErrTemporal is matched by every *TemporalError.
var ErrTemporal = errors.New("bar timestamps not strictly increasing")

// TemporalError is the fatal error for a duplicate or out-of-order bar.
type TemporalError struct {
	Index     int
	Timestamp int64
	Previous  int64
}

func (e *TemporalError) Error() string {
	kind := "out-of-order"
	if e.Timestamp == e.Previous {
		kind = "duplicate"
	}
	return fmt.Sprintf("backtest temporal error: %s bar %d at %d (previous %d)", kind, e.Index, e.Timestamp, e.Previous)
}

// Is reports ErrTemporal.
func (e *TemporalError) Is(target error) bool {
	return target == ErrTemporal
}
