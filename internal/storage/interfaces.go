package storage

import (
	"context"

	"execution-lab/internal/domain"
)

// BarStore provides access to OHLCV bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars atomically. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
	// Bars are returned in stored order; callers validate temporal ordering.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.Bar, error)
}

// OrderBookStore provides access to order-book snapshot storage.
type OrderBookStore interface {
	// InsertBulk adds multiple snapshots atomically. Fails entire batch on duplicate (symbol, venue, timestamp).
	InsertBulk(ctx context.Context, snaps []*domain.OrderBookSnapshot) error

	// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by exit_time ASC, trade_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// NoTradeEventStore provides access to no_trade_events storage.
type NoTradeEventStore interface {
	// InsertBulk adds multiple events atomically. Fails entire batch on duplicate order_id.
	InsertBulk(ctx context.Context, events []*domain.NoTradeEvent) error

	// GetByRunID retrieves all events of a run, ordered by timestamp ASC, order_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.NoTradeEvent, error)
}

// CampaignRunStore provides access to campaign_runs storage.
type CampaignRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.CampaignRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.CampaignRun, error)

	// GetByStrategy retrieves all runs of a strategy, ordered by from_ms ASC, run_id ASC.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.CampaignRun, error)
}
