package clickhouse

import (
	"context"
	"fmt"
	"time"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// OrderBookStore implements storage.OrderBookStore using ClickHouse.
// Each side of the book is stored as parallel price and quantity arrays.
type OrderBookStore struct {
	conn *Conn
}

// NewOrderBookStore creates a new OrderBookStore.
func NewOrderBookStore(conn *Conn) *OrderBookStore {
	return &OrderBookStore{conn: conn}
}

var _ storage.OrderBookStore = (*OrderBookStore)(nil)

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (symbol, venue, timestamp).
func (s *OrderBookStore) InsertBulk(ctx context.Context, snaps []*domain.OrderBookSnapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}
	defer func(began time.Time) { observe("insert_orderbook_snapshots", began, err) }(time.Now())

	type key struct {
		symbol, venue string
		ts            int64
	}
	seen := make(map[key]struct{}, len(snaps))
	for _, sn := range snaps {
		k := key{sn.Symbol, sn.Venue, sn.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		var count uint64
		if err := s.conn.QueryRow(ctx,
			`SELECT count() FROM orderbook_snapshots WHERE symbol = ? AND venue = ? AND timestamp = ?`,
			sn.Symbol, sn.Venue, sn.Timestamp,
		).Scan(&count); err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO orderbook_snapshots (symbol, venue, timestamp, bid_prices, bid_qtys, ask_prices, ask_qtys)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, sn := range snaps {
		bidPx, bidQty := splitLevels(sn.Bids)
		askPx, askQty := splitLevels(sn.Asks)
		if err := batch.Append(sn.Symbol, sn.Venue, sn.Timestamp, bidPx, bidQty, askPx, askQty); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
func (s *OrderBookStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.OrderBookSnapshot, err error) {
	defer func(began time.Time) { observe("get_orderbook_snapshots", began, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT symbol, venue, timestamp, bid_prices, bid_qtys, ask_prices, ask_qtys
		FROM orderbook_snapshots
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, venue ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.OrderBookSnapshot
	for rows.Next() {
		var sn domain.OrderBookSnapshot
		var bidPx, bidQty, askPx, askQty []float64
		if err := rows.Scan(&sn.Symbol, &sn.Venue, &sn.Timestamp, &bidPx, &bidQty, &askPx, &askQty); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if sn.Bids, err = joinLevels(bidPx, bidQty); err != nil {
			return nil, err
		}
		if sn.Asks, err = joinLevels(askPx, askQty); err != nil {
			return nil, err
		}
		snaps = append(snaps, &sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}

func splitLevels(levels []domain.Level) (prices, qtys []float64) {
	prices = make([]float64, len(levels))
	qtys = make([]float64, len(levels))
	for i, l := range levels {
		prices[i], qtys[i] = l.Price, l.Qty
	}
	return prices, qtys
}

func joinLevels(prices, qtys []float64) ([]domain.Level, error) {
	if len(prices) != len(qtys) {
		return nil, fmt.Errorf("%w: %d prices vs %d quantities", storage.ErrInvalidInput, len(prices), len(qtys))
	}
	if len(prices) == 0 {
		return nil, nil
	}
	levels := make([]domain.Level, len(prices))
	for i := range prices {
		levels[i] = domain.Level{Price: prices[i], Qty: qtys[i]}
	}
	return levels, nil
}
