// Package ingestion imports historical bars and order-book snapshots from
// files into the market data stores.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

const defaultBatchSize = 1000

// ImporterOptions configures an Importer.
type ImporterOptions struct {
	Bars       storage.BarStore
	OrderBooks storage.OrderBookStore
	BatchSize  int // default 1000

	// Sort orders records before insert. Without it records keep file
	// order so the replay engine sees ordering defects as they are.
	Sort bool

	Logger *zap.Logger
}

// Importer writes parsed market data to storage in batches.
type Importer struct {
	bars      storage.BarStore
	books     storage.OrderBookStore
	batchSize int
	sort      bool
	logger    *zap.Logger
}

// ImportResult contains statistics from an import.
type ImportResult struct {
	BarsIngested      int
	SnapshotsIngested int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// NewImporter creates a new importer.
func NewImporter(opts ImporterOptions) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Importer{
		bars:      opts.Bars,
		books:     opts.OrderBooks,
		batchSize: opts.BatchSize,
		sort:      opts.Sort,
		logger:    opts.Logger,
	}
}

// ImportBars stores bars. Batches rejected for a duplicate key are retried
// one bar at a time so only the duplicates are skipped.
func (im *Importer) ImportBars(ctx context.Context, bars []*domain.Bar) (*ImportResult, error) {
	if im.bars == nil {
		return nil, fmt.Errorf("import bars: %w: no bar store", storage.ErrInvalidInput)
	}
	start := time.Now()
	if im.sort {
		SortBars(bars)
	} else if err := ValidateBarOrdering(bars); err != nil {
		im.logger.Warn("bars are not in timestamp order, importing as-is", zap.Int("count", len(bars)))
	}

	result := &ImportResult{}
	stored, dupes, errs, err := insertBatched(ctx, bars, im.batchSize, im.bars.InsertBulk)
	result.BarsIngested = stored
	result.DuplicatesSkipped = dupes
	result.Errors = errs
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("import bars: %w", err)
	}

	im.logger.Info("bars imported",
		zap.Int("stored", stored),
		zap.Int("duplicates", dupes),
		zap.Int("errors", errs),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// ImportSnapshots stores order-book snapshots with the same duplicate
// handling as ImportBars.
func (im *Importer) ImportSnapshots(ctx context.Context, snaps []*domain.OrderBookSnapshot) (*ImportResult, error) {
	if im.books == nil {
		return nil, fmt.Errorf("import snapshots: %w: no order book store", storage.ErrInvalidInput)
	}
	start := time.Now()
	if im.sort {
		SortSnapshots(snaps)
	} else if err := ValidateSnapshotOrdering(snaps); err != nil {
		im.logger.Warn("snapshots are not in timestamp order, importing as-is", zap.Int("count", len(snaps)))
	}

	result := &ImportResult{}
	stored, dupes, errs, err := insertBatched(ctx, snaps, im.batchSize, im.books.InsertBulk)
	result.SnapshotsIngested = stored
	result.DuplicatesSkipped = dupes
	result.Errors = errs
	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("import snapshots: %w", err)
	}

	im.logger.Info("snapshots imported",
		zap.Int("stored", stored),
		zap.Int("duplicates", dupes),
		zap.Int("errors", errs),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// insertBatched inserts items in batches of size. On a duplicate batch it
// falls back to single-item inserts, counting duplicates and other
// failures. Only context errors abort.
func insertBatched[T any](ctx context.Context, items []T, size int, insert func(context.Context, []T) error) (stored, dupes, errs int, err error) {
	for i := 0; i < len(items); i += size {
		if err := ctx.Err(); err != nil {
			return stored, dupes, errs, err
		}
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]

		err := insert(ctx, batch)
		if err == nil {
			stored += len(batch)
			continue
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			if ctx.Err() != nil {
				return stored, dupes, errs, ctx.Err()
			}
			return stored, dupes, errs, err
		}

		// Batch rejected, insert one at a time
		for j := range batch {
			err := insert(ctx, batch[j:j+1])
			switch {
			case err == nil:
				stored++
			case errors.Is(err, storage.ErrDuplicateKey):
				dupes++
			case ctx.Err() != nil:
				return stored, dupes, errs, ctx.Err()
			default:
				errs++
			}
		}
	}
	return stored, dupes, errs, nil
}
