package memory

import (
	"context"
	"sort"
	"sync"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

type snapshotKey struct {
	symbol    string
	venue     string
	timestamp int64
}

// OrderBookStore is an in-memory implementation of storage.OrderBookStore.
type OrderBookStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.OrderBookSnapshot
}

// NewOrderBookStore creates a new in-memory order book store.
func NewOrderBookStore() *OrderBookStore {
	return &OrderBookStore{
		data: make(map[snapshotKey]*domain.OrderBookSnapshot),
	}
}

// InsertBulk adds multiple snapshots atomically. Fails entire batch on duplicate (symbol, venue, timestamp).
func (s *OrderBookStore) InsertBulk(_ context.Context, snaps []*domain.OrderBookSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[snapshotKey]struct{}, len(snaps))
	for _, snap := range snaps {
		if snap == nil || snap.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := snapshotKey{snap.Symbol, snap.Venue, snap.Timestamp}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, snap := range snaps {
		s.data[snapshotKey{snap.Symbol, snap.Venue, snap.Timestamp}] = cloneSnapshot(snap)
	}
	return nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
func (s *OrderBookStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderBookSnapshot
	for k, snap := range s.data {
		if k.symbol == symbol && k.timestamp >= start && k.timestamp <= end {
			result = append(result, cloneSnapshot(snap))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].Venue < result[j].Venue
	})
	return result, nil
}

func cloneSnapshot(s *domain.OrderBookSnapshot) *domain.OrderBookSnapshot {
	c := *s
	c.Bids = append([]domain.Level(nil), s.Bids...)
	c.Asks = append([]domain.Level(nil), s.Asks...)
	return &c
}

var _ storage.OrderBookStore = (*OrderBookStore)(nil)
