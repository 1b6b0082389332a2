package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"execution-lab/internal/backtest"
	"execution-lab/internal/verification"
)

// VerifyReport is the outcome of a reproducibility check.
type VerifyReport struct {
	Determinism *verification.DeterminismReport
	Stored      *verification.VerificationReport // nil when no trades are stored
}

// Match reports whether every check reproduced exactly.
func (r *VerifyReport) Match() bool {
	if !r.Determinism.Match {
		return false
	}
	return r.Stored == nil || r.Stored.Match()
}

// Verify replays the campaign and checks that it reproduces. Two fresh runs
// are compared field by field; when trades are persisted the stored trades
// of the run are matched against a replay as well. Replays store nothing.
func (o *Orchestrator) Verify(ctx context.Context, symbol string, from, to int64, seed uint64) (*VerifyReport, error) {
	runner := o.opts.Runner.WithoutPersistence()
	replay := func(ctx context.Context) (*backtest.Result, error) {
		return runner.Run(ctx, symbol, from, to, o.opts.Strategy, seed)
	}

	det, err := verification.VerifyDeterminism(ctx, replay)
	if err != nil {
		return nil, fmt.Errorf("verify determinism: %w", err)
	}
	rep := &VerifyReport{Determinism: det}

	if o.opts.Trades != nil {
		stored, err := verification.NewReplayVerifier(o.opts.Trades).VerifyRun(ctx, det.RunID, replay)
		switch {
		case errors.Is(err, verification.ErrNoStoredTrades):
			o.logger.Info("no stored trades to verify", zap.String("run_id", det.RunID))
		case err != nil:
			return nil, fmt.Errorf("verify stored trades: %w", err)
		default:
			rep.Stored = stored
		}
	}

	fields := []zap.Field{
		zap.String("run_id", det.RunID),
		zap.Bool("deterministic", det.Match),
	}
	if rep.Stored != nil {
		fields = append(fields,
			zap.Int("stored_trades", rep.Stored.TotalTrades),
			zap.Int("divergent_trades", rep.Stored.DivergentTrades),
		)
	}
	if rep.Match() {
		o.logger.Info("replay verified", fields...)
	} else {
		o.logger.Error("replay diverged", fields...)
	}
	return rep, nil
}
