package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"execution-lab/internal/config"
	"execution-lab/internal/orderbook"
	"execution-lab/internal/storage"
	chstore "execution-lab/internal/storage/clickhouse"
	"execution-lab/internal/storage/memory"
	"execution-lab/internal/storage/migrations"
	pgstore "execution-lab/internal/storage/postgres"
	sqlitestore "execution-lab/internal/storage/sqlite"
)

// Stores bundles the storage a campaign reads from and writes to.
type Stores struct {
	Bars       storage.BarStore
	OrderBooks storage.OrderBookStore
	Trades     storage.TradeRecordStore
	NoTrades   storage.NoTradeEventStore
	Campaigns  storage.CampaignRunStore

	closers []func() error
}

// NewMemoryStores returns empty in-memory stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Bars:       memory.NewBarStore(),
		OrderBooks: memory.NewOrderBookStore(),
		Trades:     memory.NewTradeRecordStore(),
		NoTrades:   memory.NewNoTradeEventStore(),
		Campaigns:  memory.NewCampaignRunStore(),
	}
}

// OpenStores connects the stores selected by cfg and applies the embedded
// migrations. Postgres holds results, ClickHouse holds bars and snapshots;
// a SQLite directory, when set, replaces ClickHouse as the snapshot source.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UseMemory {
		s := NewMemoryStores()
		if cfg.SQLiteDir != "" {
			s.useSQLite(cfg.SQLiteDir)
		}
		logger.Info("using in-memory storage", zap.String("sqlite_dir", cfg.SQLiteDir))
		return s, nil
	}
	if cfg.PostgresDSN == "" || cfg.ClickHouseDSN == "" {
		return nil, errors.New("postgres and clickhouse DSNs are required unless use_memory is set")
	}

	s := &Stores{}
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error { pool.Close(); return nil })
	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	logger.Info("postgres schema ready", zap.Strings("applied", applied))
	s.Trades = pgstore.NewTradeRecordStore(pool)
	s.NoTrades = pgstore.NewNoTradeEventStore(pool)
	s.Campaigns = pgstore.NewCampaignRunStore(pool)

	conn, applied, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("clickhouse schema ready", zap.Strings("applied", applied))
	s.closers = append(s.closers, conn.Close)
	s.Bars = chstore.NewBarStore(conn)
	s.OrderBooks = chstore.NewOrderBookStore(conn)

	if cfg.SQLiteDir != "" {
		s.useSQLite(cfg.SQLiteDir)
	}
	logger.Info("storage connected", zap.Bool("sqlite_snapshots", cfg.SQLiteDir != ""))
	return s, nil
}

func (s *Stores) useSQLite(dir string) {
	store := sqlitestore.NewOrderBookStore(dir)
	s.OrderBooks = store
	s.closers = append(s.closers, store.Close)
}

// SnapshotSource returns a shared snapshot cache over the order-book store,
// throttled to perSecond fetches when perSecond > 0.
func (s *Stores) SnapshotSource(perSecond float64, burst int, logger *zap.Logger) *orderbook.Cache {
	var loader orderbook.Loader = s.OrderBooks
	if perSecond > 0 {
		loader = orderbook.NewRateLimitedLoader(loader, perSecond, burst)
	}
	return orderbook.NewCache(loader, orderbook.WithLogger(logger))
}

// Close releases every connection, newest first.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
