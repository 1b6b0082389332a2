package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"execution-lab/internal/config"
	"execution-lab/internal/ingestion"
	"execution-lab/internal/logging"
	"execution-lab/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	symbol := flag.String("symbol", "", "Symbol to import (overrides campaign.symbol)")
	barsPath := flag.String("bars", "", "CSV file of bars: timestamp,open,high,low,close,volume")
	snapsPath := flag.String("snapshots", "", "JSONL file of order-book snapshots")
	batchSize := flag.Int("batch-size", 1000, "Records per insert batch")
	sortInput := flag.Bool("sort", false, "Sort records by timestamp before insert")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Campaign.Symbol = *symbol
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *barsPath == "" && *snapsPath == "" {
		logger.Fatal("nothing to import: pass --bars and/or --snapshots")
	}
	if cfg.Campaign.Symbol == "" {
		logger.Fatal("symbol is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := orchestrator.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	im := ingestion.NewImporter(ingestion.ImporterOptions{
		Bars:       stores.Bars,
		OrderBooks: stores.OrderBooks,
		BatchSize:  *batchSize,
		Sort:       *sortInput,
		Logger:     logger,
	})

	if *barsPath != "" {
		f, err := os.Open(*barsPath)
		if err != nil {
			logger.Fatal("open bars file", zap.Error(err))
		}
		bars, err := ingestion.ParseBarsCSV(f, cfg.Campaign.Symbol)
		f.Close()
		if err != nil {
			logger.Fatal("parse bars", zap.String("path", *barsPath), zap.Error(err))
		}
		if _, err := im.ImportBars(ctx, bars); err != nil {
			logger.Fatal("import bars", zap.Error(err))
		}
	}

	if *snapsPath != "" {
		f, err := os.Open(*snapsPath)
		if err != nil {
			logger.Fatal("open snapshots file", zap.Error(err))
		}
		snaps, err := ingestion.ParseSnapshotsJSONL(f, cfg.Campaign.Symbol)
		f.Close()
		if err != nil {
			logger.Fatal("parse snapshots", zap.String("path", *snapsPath), zap.Error(err))
		}
		if _, err := im.ImportSnapshots(ctx, snaps); err != nil {
			logger.Fatal("import snapshots", zap.Error(err))
		}
	}
}
