package lookup

import (
	"errors"
	"sort"

	"execution-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoSnapshots    = errors.New("no snapshots available")
	ErrOutOfTolerance = errors.New("nearest snapshot outside tolerance")
	ErrNoEquityData   = errors.New("no equity data at or before timestamp")
)

// NearestSnapshot returns the snapshot closest to target within toleranceMs.
// snaps must be sorted by timestamp ASC. Ties go to the earlier snapshot.
// Returns ErrNoSnapshots for an empty slice and ErrOutOfTolerance when the
// closest snapshot is further than toleranceMs away.
func NearestSnapshot(target int64, snaps []*domain.OrderBookSnapshot, toleranceMs int64) (*domain.OrderBookSnapshot, error) {
	if len(snaps) == 0 {
		return nil, ErrNoSnapshots
	}

	// First snapshot at or after target
	i := sort.Search(len(snaps), func(i int) bool {
		return snaps[i].Timestamp >= target
	})

	var best *domain.OrderBookSnapshot
	bestDist := int64(-1)
	if i > 0 {
		best = snaps[i-1]
		bestDist = target - best.Timestamp
	}
	if i < len(snaps) {
		d := snaps[i].Timestamp - target
		if best == nil || d < bestDist {
			best = snaps[i]
			bestDist = d
		}
	}

	if bestDist > toleranceMs {
		return nil, ErrOutOfTolerance
	}
	return best, nil
}

// EquityAtOrBefore returns the latest equity point with timestamp <= target.
// points must be sorted by timestamp ASC.
func EquityAtOrBefore(target int64, points []domain.EquityPoint) (domain.EquityPoint, error) {
	i := sort.Search(len(points), func(i int) bool {
		return points[i].Timestamp > target
	})
	if i == 0 {
		return domain.EquityPoint{}, ErrNoEquityData
	}
	return points[i-1], nil
}
