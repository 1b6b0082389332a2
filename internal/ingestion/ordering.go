package ingestion

import (
	"errors"
	"sort"

	"execution-lab/internal/domain"
)

// ErrInvalidOrdering is returned when records are not properly ordered.
var ErrInvalidOrdering = errors.New("records are not in deterministic order")

// SortBars orders bars by (symbol ASC, timestamp ASC).
func SortBars(bars []*domain.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		return compareBars(bars[i], bars[j]) < 0
	})
}

// SortSnapshots orders snapshots by (symbol ASC, venue ASC, timestamp ASC).
func SortSnapshots(snaps []*domain.OrderBookSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return compareSnapshots(snaps[i], snaps[j]) < 0
	})
}

// ValidateBarOrdering checks that bars are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateBarOrdering(bars []*domain.Bar) error {
	for i := 1; i < len(bars); i++ {
		if compareBars(bars[i-1], bars[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// ValidateSnapshotOrdering checks that snapshots are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateSnapshotOrdering(snaps []*domain.OrderBookSnapshot) error {
	for i := 1; i < len(snaps); i++ {
		if compareSnapshots(snaps[i-1], snaps[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareBars returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (symbol ASC, timestamp ASC)
func compareBars(a, b *domain.Bar) int {
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	return compareInt64(a.Timestamp, b.Timestamp)
}

// compareSnapshots orders by (symbol ASC, venue ASC, timestamp ASC).
func compareSnapshots(a, b *domain.OrderBookSnapshot) int {
	if a.Symbol != b.Symbol {
		if a.Symbol < b.Symbol {
			return -1
		}
		return 1
	}
	if a.Venue != b.Venue {
		if a.Venue < b.Venue {
			return -1
		}
		return 1
	}
	return compareInt64(a.Timestamp, b.Timestamp)
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
