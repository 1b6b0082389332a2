// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Execution metrics
	OrderAttempts      *prometheus.CounterVec
	OrdersCompleted    *prometheus.CounterVec
	OrderBookFallbacks *prometheus.CounterVec
	FillSlippageBps    prometheus.Histogram

	// Snapshot cache metrics
	SnapshotCacheHits   prometheus.Counter
	SnapshotCacheMisses prometheus.Counter
	SnapshotLoadLatency prometheus.Histogram

	// Backtest metrics
	BarsProcessed       prometheus.Counter
	InvalidSignals      *prometheus.CounterVec
	IntegrityViolations prometheus.Counter
	TradesSimulated     prometheus.Counter
	BacktestRunsTotal   *prometheus.CounterVec
	BacktestDuration    prometheus.Histogram

	// Campaign metrics
	GuardrailDecisions *prometheus.CounterVec
	WalkForwardWindows *prometheus.CounterVec
	PipelineDuration   prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "execution_lab"
	}

	return &Metrics{
		// Execution metrics
		OrderAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "order_attempts_total",
			Help:      "Total number of fill attempts by order kind",
		}, []string{"kind"}),
		OrdersCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orders_completed_total",
			Help:      "Total number of orders reaching a terminal status",
		}, []string{"kind", "status"}),
		OrderBookFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "orderbook_fallbacks_total",
			Help:      "Total number of fills priced without an order book, by reason",
		}, []string{"reason"}),
		FillSlippageBps: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "fill_slippage_bps",
			Help:      "Realized slippage of completed orders in basis points",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 250, 500},
		}),

		// Snapshot cache metrics
		SnapshotCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "cache_hits_total",
			Help:      "Total number of snapshot buckets served from cache",
		}),
		SnapshotCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "cache_misses_total",
			Help:      "Total number of snapshot buckets fetched from the loader",
		}),
		SnapshotLoadLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orderbook",
			Name:      "load_latency_seconds",
			Help:      "Snapshot bucket load latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Backtest metrics
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_processed_total",
			Help:      "Total number of bars replayed",
		}),
		InvalidSignals: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "invalid_signals_total",
			Help:      "Total number of rejected strategy signals by action",
		}, []string{"action"}),
		IntegrityViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "integrity_violations_total",
			Help:      "Total number of equity points where realistic exceeded theoretical",
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		// Campaign metrics
		GuardrailDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guardrail",
			Name:      "decisions_total",
			Help:      "Total number of guardrail decisions by outcome and reason",
		}, []string{"passed", "reason"}),
		WalkForwardWindows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "windows_total",
			Help:      "Total number of walk-forward windows by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "walkforward",
			Name:      "duration_seconds",
			Help:      "Walk-forward pipeline duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOrderAttempt increments the fill attempt counter.
func RecordOrderAttempt(kind string) {
	DefaultMetrics.OrderAttempts.WithLabelValues(kind).Inc()
}

// RecordOrderCompleted records a terminal order and, when it filled, its slippage.
func RecordOrderCompleted(kind, status string, filled bool, slippageBps float64) {
	DefaultMetrics.OrdersCompleted.WithLabelValues(kind, status).Inc()
	if filled {
		DefaultMetrics.FillSlippageBps.Observe(slippageBps)
	}
}

// RecordOrderBookFallback increments the no-book fallback counter.
func RecordOrderBookFallback(reason string) {
	DefaultMetrics.OrderBookFallbacks.WithLabelValues(reason).Inc()
}

// RecordSnapshotCache records a cache lookup. seconds is ignored on hits.
func RecordSnapshotCache(hit bool, seconds float64) {
	if hit {
		DefaultMetrics.SnapshotCacheHits.Inc()
		return
	}
	DefaultMetrics.SnapshotCacheMisses.Inc()
	DefaultMetrics.SnapshotLoadLatency.Observe(seconds)
}

// RecordBar increments the bars processed counter.
func RecordBar() {
	DefaultMetrics.BarsProcessed.Inc()
}

// RecordInvalidSignal increments the invalid signal counter.
func RecordInvalidSignal(action string) {
	DefaultMetrics.InvalidSignals.WithLabelValues(action).Inc()
}

// RecordIntegrityViolation increments the integrity violation counter.
func RecordIntegrityViolation() {
	DefaultMetrics.IntegrityViolations.Inc()
}

// RecordTrade increments the trades simulated counter.
func RecordTrade() {
	DefaultMetrics.TradesSimulated.Inc()
}

// RecordBacktestRun records a completed backtest run.
func RecordBacktestRun(status string, durationSeconds float64, finishedAtUnix int64) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
	DefaultMetrics.LastSuccessfulRun.Set(float64(finishedAtUnix))
}

// RecordGuardrailDecision records a guardrail outcome.
func RecordGuardrailDecision(passed bool, reason string) {
	p := "false"
	if passed {
		p = "true"
	}
	DefaultMetrics.GuardrailDecisions.WithLabelValues(p, reason).Inc()
}

// RecordWalkForwardWindow records a walk-forward window by status.
func RecordWalkForwardWindow(status string) {
	DefaultMetrics.WalkForwardWindows.WithLabelValues(status).Inc()
}

// RecordPipelineDuration records a walk-forward pipeline duration.
func RecordPipelineDuration(seconds float64) {
	DefaultMetrics.PipelineDuration.Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
