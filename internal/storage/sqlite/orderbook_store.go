// Package sqlite stores order-book snapshots in local SQLite files, one file
// per symbol, using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    venue     TEXT    NOT NULL,
    ts        INTEGER NOT NULL,
    bids      TEXT    NOT NULL,
    asks      TEXT    NOT NULL,
    PRIMARY KEY (ts, venue)
);
`

// OrderBookStore implements storage.OrderBookStore over a directory of
// <symbol>.db files. Reading a symbol without a file returns
// storage.ErrFileNotFound; files are created on first insert.
type OrderBookStore struct {
	dir string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewOrderBookStore creates a store rooted at dir.
func NewOrderBookStore(dir string) *OrderBookStore {
	return &OrderBookStore{dir: dir, dbs: make(map[string]*sql.DB)}
}

var _ storage.OrderBookStore = (*OrderBookStore)(nil)

// Path returns the snapshot file for symbol.
func (s *OrderBookStore) Path(symbol string) string {
	return filepath.Join(s.dir, symbol+".db")
}

// Close closes every open file.
func (s *OrderBookStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for sym, db := range s.dbs {
		errs = append(errs, db.Close())
		delete(s.dbs, sym)
	}
	return errors.Join(errs...)
}

// open returns the handle for symbol. With create unset a missing file is
// reported as storage.ErrFileNotFound instead of being created.
func (s *OrderBookStore) open(symbol string, create bool) (*sql.DB, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.HasPrefix(symbol, ".") {
		return nil, fmt.Errorf("%w: symbol %q", storage.ErrInvalidInput, symbol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[symbol]; ok {
		return db, nil
	}

	path := s.Path(symbol)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrFileNotFound, path)
		}
	} else if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema %q: %w", path, err)
	}
	s.dbs[symbol] = db
	return db, nil
}

// InsertBulk adds snapshots atomically per symbol file. Fails the batch of a
// file on duplicate (venue, timestamp).
func (s *OrderBookStore) InsertBulk(ctx context.Context, snaps []*domain.OrderBookSnapshot) error {
	bySymbol := make(map[string][]*domain.OrderBookSnapshot)
	var order []string
	for _, sn := range snaps {
		if _, ok := bySymbol[sn.Symbol]; !ok {
			order = append(order, sn.Symbol)
		}
		bySymbol[sn.Symbol] = append(bySymbol[sn.Symbol], sn)
	}

	for _, sym := range order {
		if err := s.insertSymbol(ctx, sym, bySymbol[sym]); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderBookStore) insertSymbol(ctx context.Context, symbol string, snaps []*domain.OrderBookSnapshot) error {
	db, err := s.open(symbol, true)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, sn := range snaps {
		bids, err := json.Marshal(sn.Bids)
		if err != nil {
			return fmt.Errorf("encode bids: %w", err)
		}
		asks, err := json.Marshal(sn.Asks)
		if err != nil {
			return fmt.Errorf("encode asks: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots (venue, ts, bids, asks) VALUES (?, ?, ?, ?)`,
			sn.Venue, sn.Timestamp, string(bids), string(asks))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves snapshots for a symbol within [start, end] (inclusive), ordered by timestamp ASC.
func (s *OrderBookStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.OrderBookSnapshot, error) {
	db, err := s.open(symbol, false)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT venue, ts, bids, asks FROM snapshots WHERE ts >= ? AND ts <= ? ORDER BY ts ASC, venue ASC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.OrderBookSnapshot
	for rows.Next() {
		sn := &domain.OrderBookSnapshot{Symbol: symbol}
		var bids, asks string
		if err := rows.Scan(&sn.Venue, &sn.Timestamp, &bids, &asks); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if err := json.Unmarshal([]byte(bids), &sn.Bids); err != nil {
			return nil, fmt.Errorf("decode bids at %d: %w", sn.Timestamp, err)
		}
		if err := json.Unmarshal([]byte(asks), &sn.Asks); err != nil {
			return nil, fmt.Errorf("decode asks at %d: %w", sn.Timestamp, err)
		}
		snaps = append(snaps, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}
