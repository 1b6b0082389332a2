package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

const noTradeEventColumns = `order_id, run_id, symbol, ts, side, kind,
	target_price, requested_qty, filled_qty, filled_ratio, reason, age_bars`

const insertNoTradeEvent = `INSERT INTO no_trade_events (` + noTradeEventColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// NoTradeEventStore implements storage.NoTradeEventStore using PostgreSQL.
type NoTradeEventStore struct {
	pool *Pool
}

// NewNoTradeEventStore creates a new NoTradeEventStore.
func NewNoTradeEventStore(pool *Pool) *NoTradeEventStore {
	return &NoTradeEventStore{pool: pool}
}

var _ storage.NoTradeEventStore = (*NoTradeEventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on duplicate order_id.
func (s *NoTradeEventStore) InsertBulk(ctx context.Context, events []*domain.NoTradeEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer func(began time.Time) { observe("insert_no_trade_events", began, err) }(time.Now())

	rows := make([][]any, len(events))
	for i, e := range events {
		if e == nil || e.OrderID == "" {
			return storage.ErrInvalidInput
		}
		rows[i] = []any{
			e.OrderID, e.RunID, e.Symbol, e.Timestamp, string(e.Side), e.Kind,
			e.TargetPrice, e.RequestedQty, e.FilledQty, e.FilledRatio, string(e.Reason), e.AgeBars,
		}
	}
	return mapError("insert no-trade events", s.pool.insertBatch(ctx, insertNoTradeEvent, rows))
}

// GetByRunID retrieves all events of a run, ordered by timestamp ASC, order_id ASC.
func (s *NoTradeEventStore) GetByRunID(ctx context.Context, runID string) ([]*domain.NoTradeEvent, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+noTradeEventColumns+`
		FROM no_trade_events
		WHERE run_id = $1
		ORDER BY ts ASC, order_id ASC`, runID)
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.NoTradeEvent, error) {
		var e domain.NoTradeEvent
		var side, reason string
		if err := row.Scan(
			&e.OrderID, &e.RunID, &e.Symbol, &e.Timestamp, &side, &e.Kind,
			&e.TargetPrice, &e.RequestedQty, &e.FilledQty, &e.FilledRatio, &reason, &e.AgeBars,
		); err != nil {
			return nil, err
		}
		e.Side = domain.Side(side)
		e.Reason = domain.NoTradeReason(reason)
		return &e, nil
	})
	if err != nil {
		return nil, mapError("get no-trade events by run", err)
	}
	return events, nil
}
