package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// ErrNoStoredTrades is returned when the run has no stored trades to verify.
var ErrNoStoredTrades = errors.New("no stored trades for run")

// ReplayFunc re-executes the backtest that produced a stored run.
type ReplayFunc func(ctx context.Context) (*backtest.Result, error)

// ReplayVerifier checks stored trades against a fresh replay.
type ReplayVerifier struct {
	tradeStore storage.TradeRecordStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(tradeStore storage.TradeRecordStore) *ReplayVerifier {
	return &ReplayVerifier{tradeStore: tradeStore}
}

// VerifyRun loads the trades stored for runID, replays the run and matches
// trades by trade ID. The replay must produce the same run ID.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string, replay ReplayFunc) (*VerificationReport, error) {
	stored, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	if len(stored) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStoredTrades, runID)
	}

	res, err := replay(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if res.RunID != runID {
		return nil, fmt.Errorf("replay produced run %s, want %s", res.RunID, runID)
	}

	replayed := make(map[string]*domain.TradeRecord, len(res.Trades))
	for _, t := range res.Trades {
		replayed[t.TradeID] = t
	}

	report := &VerificationReport{
		RunID:       runID,
		TotalTrades: len(stored),
		Results:     make([]VerificationResult, 0, len(stored)),
	}
	for _, s := range stored {
		r, ok := replayed[s.TradeID]
		if !ok {
			report.MissingTrades = append(report.MissingTrades, s.TradeID)
			report.DivergentTrades++
			continue
		}
		delete(replayed, s.TradeID)

		divs := CompareTradeRecords(s, r)
		report.Results = append(report.Results, VerificationResult{
			TradeID:     s.TradeID,
			Match:       len(divs) == 0,
			Divergences: divs,
		})
		if len(divs) == 0 {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
	}
	for id := range replayed {
		report.ExtraTrades = append(report.ExtraTrades, id)
	}
	sort.Strings(report.ExtraTrades)
	return report, nil
}
