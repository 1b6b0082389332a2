package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"execution-lab/internal/config"
	"execution-lab/internal/logging"
	"execution-lab/internal/observability"
	"execution-lab/internal/orchestrator"
	"execution-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	symbol := flag.String("symbol", "", "Symbol to evaluate (overrides campaign.symbol)")
	seed := flag.Uint64("seed", 0, "Seed for bootstrap and ruin simulations (overrides campaign.seed when non-zero)")
	workers := flag.Int("workers", 0, "Concurrent walk-forward windows (overrides walk_forward.workers when > 0)")
	noSweep := flag.Bool("no-sweep", false, "Skip the parameter sensitivity sweep")
	format := flag.String("format", "table", "Output format: table, json, markdown")
	outputDir := flag.String("output-dir", "", "Also write report.md, report.json and trades.csv here")
	persist := flag.Bool("persist", false, "Persist trades and the campaign verdict")
	fixtures := flag.Bool("fixtures", false, "Load a synthetic market into the stores before running")
	strict := flag.Bool("strict", false, "Exit with status 2 when the guardrails reject the campaign")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides metrics_addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Campaign.Symbol = *symbol
	}
	if *seed != 0 {
		cfg.Campaign.Seed = *seed
	}
	if *workers > 0 {
		cfg.WalkForward.Workers = *workers
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	from, to, _ := cfg.Range()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	stores, err := orchestrator.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	if *fixtures {
		n, err := orchestrator.LoadFixtures(ctx, stores.Bars, stores.OrderBooks,
			orchestrator.DefaultFixtureOptions(cfg.Campaign.Symbol, from, to, cfg.Campaign.Seed))
		if err != nil {
			logger.Fatal("load fixtures", zap.Error(err))
		}
		logger.Info("synthetic market loaded", zap.Int("bars", n))
	}

	orch, err := orchestrator.FromConfig(cfg, stores, orchestrator.WireOptions{Persist: *persist, Sweep: !*noSweep}, logger)
	if err != nil {
		logger.Fatal("configure campaign", zap.Error(err))
	}

	rep, err := orch.RunWalkForward(ctx, cfg.Campaign.Symbol, from, to, cfg.Campaign.Seed)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("walk-forward cancelled, results discarded")
			os.Exit(130)
		}
		logger.Fatal("walk-forward failed", zap.Error(err))
	}

	r := reporting.NewGenerator().WalkForward(rep)
	switch strings.ToLower(*format) {
	case "table":
		err = reporting.RenderTable(os.Stdout, r)
	case "json":
		err = reporting.RenderJSON(os.Stdout, r)
	case "markdown", "md":
		_, err = fmt.Fprint(os.Stdout, reporting.RenderMarkdown(r))
	default:
		err = fmt.Errorf("unknown format %q: want table, json or markdown", *format)
	}
	if err != nil {
		logger.Fatal("render report", zap.Error(err))
	}

	if *outputDir != "" {
		if err := writeOutputs(*outputDir, r); err != nil {
			logger.Fatal("write outputs", zap.Error(err))
		}
		logger.Info("reports written", zap.String("dir", *outputDir))
	}

	if err := rep.Verdict.RaiseIfFailed(); err != nil && *strict {
		logger.Sync()
		os.Exit(2)
	}
}

func writeOutputs(dir string, r *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(reporting.RenderMarkdown(r)), 0o644); err != nil {
		return fmt.Errorf("write report.md: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "trades.csv"), []byte(reporting.RenderTradesCSV(r.Trades)), 0o644); err != nil {
		return fmt.Errorf("write trades.csv: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "report.json"))
	if err != nil {
		return fmt.Errorf("create report.json: %w", err)
	}
	defer f.Close()
	return reporting.RenderJSON(f, r)
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}
