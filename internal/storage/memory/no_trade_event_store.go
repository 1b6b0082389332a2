package memory

import (
	"context"
	"sort"
	"sync"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// NoTradeEventStore is an in-memory implementation of storage.NoTradeEventStore.
type NoTradeEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.NoTradeEvent // keyed by order_id
}

// NewNoTradeEventStore creates a new in-memory no-trade event store.
func NewNoTradeEventStore() *NoTradeEventStore {
	return &NoTradeEventStore{
		data: make(map[string]*domain.NoTradeEvent),
	}
}

// InsertBulk adds multiple events atomically. Fails entire batch on duplicate order_id.
func (s *NoTradeEventStore) InsertBulk(_ context.Context, events []*domain.NoTradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.OrderID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.OrderID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.OrderID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.OrderID] = struct{}{}
	}

	for _, e := range events {
		copy := *e
		s.data[e.OrderID] = &copy
	}
	return nil
}

// GetByRunID retrieves all events of a run, ordered by timestamp ASC, order_id ASC.
func (s *NoTradeEventStore) GetByRunID(_ context.Context, runID string) ([]*domain.NoTradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NoTradeEvent
	for _, e := range s.data {
		if e.RunID == runID {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].OrderID < result[j].OrderID
	})
	return result, nil
}

var _ storage.NoTradeEventStore = (*NoTradeEventStore)(nil)
