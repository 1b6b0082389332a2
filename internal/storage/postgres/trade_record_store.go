package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

const tradeRecordColumns = `
	trade_id, run_id, strategy_id, symbol, side, quantity,
	entry_time, entry_price, entry_price_theoretical,
	exit_time, exit_price, exit_price_theoretical, exit_reason,
	fees, pnl_theoretical, pnl_realistic, return_pct, partial`

const insertTradeRecord = `INSERT INTO trade_records (` + tradeRecordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

func tradeArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.RunID, t.StrategyID, t.Symbol, string(t.Side), t.Quantity,
		t.EntryTime, t.EntryPrice, t.EntryPriceTheoretical,
		t.ExitTime, t.ExitPrice, t.ExitPriceTheoretical, t.ExitReason,
		t.Fees, t.PnLTheoretical, t.PnLRealistic, t.ReturnPct, t.Partial,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, insertTradeRecord, tradeArgs(t)...)
	return mapError("insert trade record", err)
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	defer func(began time.Time) { observe("insert_trade_records", began, err) }(time.Now())

	rows := make([][]any, len(trades))
	for i, t := range trades {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
		rows[i] = tradeArgs(t)
	}
	return mapError("insert trade records", s.pool.insertBatch(ctx, insertTradeRecord, rows))
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+tradeRecordColumns+` FROM trade_records WHERE trade_id = $1`, tradeID)
	t, err := pgx.CollectExactlyOneRow(rows, scanTradeRecord)
	if err != nil {
		return nil, mapError("get trade record", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by exit_time ASC, trade_id ASC.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) (_ []*domain.TradeRecord, err error) {
	defer func(began time.Time) { observe("get_trade_records", began, err) }(time.Now())

	rows, _ := s.pool.Query(ctx, `SELECT `+tradeRecordColumns+`
		FROM trade_records
		WHERE run_id = $1
		ORDER BY exit_time ASC, trade_id ASC`, runID)
	trades, err := pgx.CollectRows(rows, scanTradeRecord)
	if err != nil {
		return nil, mapError("get trade records by run", err)
	}
	return trades, nil
}

func scanTradeRecord(row pgx.CollectableRow) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var side string
	err := row.Scan(
		&t.TradeID, &t.RunID, &t.StrategyID, &t.Symbol, &side, &t.Quantity,
		&t.EntryTime, &t.EntryPrice, &t.EntryPriceTheoretical,
		&t.ExitTime, &t.ExitPrice, &t.ExitPriceTheoretical, &t.ExitReason,
		&t.Fees, &t.PnLTheoretical, &t.PnLRealistic, &t.ReturnPct, &t.Partial,
	)
	if err != nil {
		return nil, err
	}
	t.Side = domain.PositionSide(side)
	return &t, nil
}
