package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
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
	symbol := flag.String("symbol", "", "Symbol to backtest (overrides campaign.symbol)")
	seed := flag.Uint64("seed", 0, "Seed for bootstrap and ruin simulations (overrides campaign.seed when non-zero)")
	format := flag.String("format", "table", "Output format: table, json, markdown, csv")
	persist := flag.Bool("persist", false, "Persist trades and the campaign verdict")
	fixtures := flag.Bool("fixtures", false, "Load a synthetic market into the stores before running")
	strict := flag.Bool("strict", false, "Exit with status 2 when the guardrails reject the campaign")
	verify := flag.Bool("verify", false, "Replay the campaign and check it reproduces (exit 3 on divergence)")
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

	// Cancel on SIGINT/SIGTERM; a cancelled run is discarded
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

	orch, err := orchestrator.FromConfig(cfg, stores, orchestrator.WireOptions{Persist: *persist}, logger)
	if err != nil {
		logger.Fatal("configure campaign", zap.Error(err))
	}

	rep, err := orch.RunCampaign(ctx, cfg.Campaign.Symbol, from, to, cfg.Campaign.Seed)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("backtest cancelled, results discarded")
			os.Exit(130)
		}
		logger.Fatal("backtest failed", zap.Error(err))
	}

	r := reporting.NewGenerator().Campaign(rep)
	if err := render(*format, r); err != nil {
		logger.Fatal("render report", zap.Error(err))
	}

	if *verify {
		vr, err := orch.Verify(ctx, cfg.Campaign.Symbol, from, to, cfg.Campaign.Seed)
		if err != nil {
			logger.Fatal("verify replay", zap.Error(err))
		}
		if !vr.Match() {
			for _, d := range vr.Determinism.Divergences {
				logger.Error("divergence", zap.String("field", d.Field), zap.Any("first", d.Expected), zap.Any("second", d.Actual))
			}
			logger.Sync()
			os.Exit(3)
		}
	}

	if err := rep.Verdict.RaiseIfFailed(); err != nil && *strict {
		logger.Sync()
		os.Exit(2)
	}
}

func render(format string, r *reporting.Report) error {
	switch strings.ToLower(format) {
	case "table":
		return reporting.RenderTable(os.Stdout, r)
	case "json":
		return reporting.RenderJSON(os.Stdout, r)
	case "markdown", "md":
		_, err := fmt.Fprint(os.Stdout, reporting.RenderMarkdown(r))
		return err
	case "csv":
		_, err := fmt.Fprint(os.Stdout, reporting.RenderTradesCSV(r.Trades))
		return err
	default:
		return fmt.Errorf("unknown format %q: want table, json, markdown or csv", format)
	}
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
