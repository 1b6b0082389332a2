package memory

import (
	"context"
	"sync"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

type barKey struct {
	symbol    string
	timestamp int64
}

// BarStore is an in-memory implementation of storage.BarStore.
// Bars are kept in insertion order per symbol so ordering defects in the
// source data remain visible to the replay.
type BarStore struct {
	mu   sync.RWMutex
	keys map[barKey]struct{}
	data map[string][]*domain.Bar // keyed by symbol, insertion order
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		keys: make(map[barKey]struct{}),
		data: make(map[string][]*domain.Bar),
	}
}

// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (symbol, timestamp).
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[barKey]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := barKey{b.Symbol, b.Timestamp}
		if _, exists := s.keys[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		s.keys[barKey{b.Symbol, b.Timestamp}] = struct{}{}
		s.data[b.Symbol] = append(s.data[b.Symbol], &copy)
	}
	return nil
}

// AppendRaw appends bars without duplicate checks. Used to reproduce
// corrupted feeds in tests and fixtures.
func (s *BarStore) AppendRaw(bars ...domain.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range bars {
		copy := b
		s.keys[barKey{b.Symbol, b.Timestamp}] = struct{}{}
		s.data[b.Symbol] = append(s.data[b.Symbol], &copy)
	}
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive), in stored order.
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Bar
	for _, b := range s.data[symbol] {
		if b.Timestamp >= start && b.Timestamp <= end {
			copy := *b
			result = append(result, &copy)
		}
	}
	return result, nil
}

var _ storage.BarStore = (*BarStore)(nil)
