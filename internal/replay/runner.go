package replay

import (
	"context"

	"go.uber.org/zap"

	"execution-lab/internal/storage"
)

// Runner loads bars from storage and streams them to a handler.
// Bars are never re-sorted: ordering defects in the data must reach the handler.
type Runner struct {
	barStore storage.BarStore
	logger   *zap.Logger
}

// NewRunner creates a new replay runner.
func NewRunner(barStore storage.BarStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		barStore: barStore,
		logger:   logger,
	}
}

// Run loads bars for symbol within [from, to] and replays them through handler.
func (r *Runner) Run(ctx context.Context, symbol string, from, to int64, handler BarHandler) error {
	bars, err := r.barStore.GetByTimeRange(ctx, symbol, from, to)
	if err != nil {
		return err
	}

	if err := VerifyOrdering(bars); err != nil {
		r.logger.Warn("bar stream is not strictly ordered",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}

	for _, bar := range bars {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler.OnBar(ctx, bar); err != nil {
			return err
		}
	}

	if end, ok := handler.(EndHandler); ok {
		return end.OnEnd(ctx)
	}
	return nil
}
