package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes statistics from persisted trade records and records
// campaign outcomes.
type Aggregator struct {
	tradeRecordStore storage.TradeRecordStore
	campaignRunStore storage.CampaignRunStore
}

// NewAggregator creates a new metrics aggregator. runStore may be nil when
// campaigns are not persisted.
func NewAggregator(tradeStore storage.TradeRecordStore, runStore storage.CampaignRunStore) *Aggregator {
	return &Aggregator{
		tradeRecordStore: tradeStore,
		campaignRunStore: runStore,
	}
}

// ComputeTradeStats loads the trades of a run and computes their statistics.
// Returns ErrNoTrades if the run has no trades.
func (a *Aggregator) ComputeTradeStats(ctx context.Context, runID string) (*TradeStats, error) {
	trades, err := a.tradeRecordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}
	return computeTradeStats(trades), nil
}

// CampaignOutcome is the guardrail verdict stored with campaign metrics.
type CampaignOutcome struct {
	FromMs    int64
	ToMs      int64
	Seed      uint64
	Passed    bool
	Reason    string
	CreatedAt int64 // ms
}

// StoreCampaign persists metrics with their verdict.
// Returns storage.ErrDuplicateKey if the run was already stored (append-only).
func (a *Aggregator) StoreCampaign(ctx context.Context, m *CampaignMetrics, out CampaignOutcome) (*domain.CampaignRun, error) {
	if a.campaignRunStore == nil {
		return nil, errors.New("campaign run store not configured")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal campaign metrics: %w", err)
	}

	run := &domain.CampaignRun{
		RunID:       m.RunID,
		StrategyID:  m.StrategyName,
		Symbol:      m.Symbol,
		FromMs:      out.FromMs,
		ToMs:        out.ToMs,
		Seed:        out.Seed,
		Passed:      out.Passed,
		Reason:      out.Reason,
		MetricsJSON: payload,
		CreatedAtMs: out.CreatedAt,
	}
	if err := a.campaignRunStore.Insert(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}
