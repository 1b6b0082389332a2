package memory

import (
	"context"
	"sort"
	"sync"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// CampaignRunStore is an in-memory implementation of storage.CampaignRunStore.
type CampaignRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CampaignRun // keyed by run_id
}

// NewCampaignRunStore creates a new in-memory campaign run store.
func NewCampaignRunStore() *CampaignRunStore {
	return &CampaignRunStore{
		data: make(map[string]*domain.CampaignRun),
	}
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *CampaignRunStore) Insert(_ context.Context, r *domain.CampaignRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = cloneRun(r)
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *CampaignRunStore) GetByID(_ context.Context, runID string) (*domain.CampaignRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRun(r), nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by from_ms ASC, run_id ASC.
func (s *CampaignRunStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.CampaignRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CampaignRun
	for _, r := range s.data {
		if r.StrategyID == strategyID {
			result = append(result, cloneRun(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FromMs != result[j].FromMs {
			return result[i].FromMs < result[j].FromMs
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

func cloneRun(r *domain.CampaignRun) *domain.CampaignRun {
	c := *r
	c.MetricsJSON = append([]byte(nil), r.MetricsJSON...)
	return &c
}

var _ storage.CampaignRunStore = (*CampaignRunStore)(nil)
