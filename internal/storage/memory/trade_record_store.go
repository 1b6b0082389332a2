package memory

import (
	"context"
	"sort"
	"sync"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
// Trades are indexed by trade id and by run id.
type TradeRecordStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.TradeRecord
	byRun map[string][]*domain.TradeRecord
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		byID:  make(map[string]*domain.TradeRecord),
		byRun: make(map[string][]*domain.TradeRecord),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	return s.InsertBulk(ctx, []*domain.TradeRecord{t})
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		if _, ok := s.byID[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		if _, ok := seen[t.TradeID]; ok {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	for _, t := range trades {
		rec := *t
		s.byID[rec.TradeID] = &rec
		s.byRun[rec.RunID] = append(s.byRun[rec.RunID], &rec)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[tradeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec := *t
	return &rec, nil
}

// GetByRunID retrieves all trades of a run, ordered by exit_time ASC, trade_id ASC.
func (s *TradeRecordStore) GetByRunID(_ context.Context, runID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	stored := s.byRun[runID]
	result := make([]*domain.TradeRecord, len(stored))
	for i, t := range stored {
		rec := *t
		result[i] = &rec
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExitTime != result[j].ExitTime {
			return result[i].ExitTime < result[j].ExitTime
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)
