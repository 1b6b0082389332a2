// Package orderbook provides read-only access to historical order-book
// snapshots through a shared, versioned cache.
package orderbook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"execution-lab/internal/domain"
)

// Reason classifies why no usable snapshot was found.
type Reason string

// Lookup failure reasons.
const (
	ReasonFileNotFound       Reason = "file_not_found"
	ReasonNoSnapshotsInRange Reason = "no_snapshots_in_range"
	ReasonOutOfTolerance     Reason = "out_of_tolerance"
	ReasonNotFound           Reason = "not_found"
)

// ErrSnapshotNotFound is matched by every *LookupError.
var ErrSnapshotNotFound = errors.New("order book snapshot not found")

// LookupError reports a failed snapshot lookup.
type LookupError struct {
	Reason    Reason
	Symbol    string
	Timestamp int64
	Err       error // underlying loader error, if any
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order book %s at %d: %s: %v", e.Symbol, e.Timestamp, e.Reason, e.Err)
	}
	return fmt.Sprintf("order book %s at %d: %s", e.Symbol, e.Timestamp, e.Reason)
}

// Unwrap exposes ErrSnapshotNotFound and the underlying error.
func (e *LookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSnapshotNotFound}
	}
	return []error{ErrSnapshotNotFound, e.Err}
}

// ReasonOf extracts the lookup reason from err, or ReasonNotFound.
func ReasonOf(err error) Reason {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Reason
	}
	return ReasonNotFound
}

// Source serves snapshots to the execution simulator.
type Source interface {
	// GetSnapshot returns the snapshot nearest to ts within tolerance.
	// Failures are reported as *LookupError; context errors are returned as is.
	GetSnapshot(ctx context.Context, symbol string, ts int64, tolerance time.Duration) (*domain.OrderBookSnapshot, error)

	// Load returns all snapshots for symbol within [start, end], ordered by timestamp ASC.
	Load(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error)
}

// Loader fetches raw snapshots. storage.OrderBookStore satisfies it.
type Loader interface {
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error)
}
