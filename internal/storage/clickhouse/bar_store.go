package clickhouse

import (
	"context"
	"fmt"
	"time"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.Bar) (err error) {
	if len(bars) == 0 {
		return nil
	}
	defer func(began time.Time) { observe("insert_bars", began, err) }(time.Now())

	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		k := key{b.Symbol, b.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, b := range bars {
		var count uint64
		if err := s.conn.QueryRow(ctx,
			`SELECT count() FROM bars WHERE symbol = ? AND timestamp = ?`,
			b.Symbol, b.Timestamp,
		).Scan(&count); err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO bars (symbol, timestamp, open, high, low, close, volume)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, b := range bars {
		if err := batch.Append(b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.Bar, err error) {
	defer func(began time.Time) { observe("get_bars", began, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `
		SELECT symbol, timestamp, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query bars by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func scanBars(rows chRows) ([]*domain.Bar, error) {
	var bars []*domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}
	return bars, nil
}
