// Package execution drives single order attempts against a bar and the
// nearest order-book snapshot, falling back to a no-book heuristic when
// snapshot data is unavailable.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"execution-lab/internal/domain"
	"execution-lab/internal/fillmodel"
	"execution-lab/internal/observability"
	"execution-lab/internal/order"
	"execution-lab/internal/orderbook"
)

// ErrOutOfOrder is returned when an order sequence is not strictly increasing in time.
var ErrOutOfOrder = errors.New("execution steps out of temporal order")

// Config holds execution simulator settings.
type Config struct {
	Tolerance time.Duration `yaml:"tolerance"` // max distance to the nearest snapshot
}

// DefaultConfig returns the default simulator configuration.
func DefaultConfig() Config {
	return Config{Tolerance: 30 * time.Second}
}

// OrderBookWarning is emitted when an attempt is priced without a snapshot.
type OrderBookWarning struct {
	Symbol           string
	Timestamp        int64
	Reason           orderbook.Reason
	ToleranceSeconds float64
}

// Result is the outcome of one simulated attempt.
type Result struct {
	Timestamp    int64
	Symbol       string
	Order        order.Result
	Estimate     fillmodel.Estimate // pre-trade estimate for the remaining quantity
	Snapshot     *domain.OrderBookSnapshot
	UsedFallback bool
	Warning      *OrderBookWarning
}

// Step pairs an order with the bar it is attempted against.
type Step struct {
	Order *order.Order
	Bar   domain.Bar
}

// Simulator executes orders for one run. It is not safe for concurrent use;
// the snapshot source it reads from may be shared.
type Simulator struct {
	source  orderbook.Source
	model   *fillmodel.Model
	cfg     Config
	logger  *zap.Logger
	tracker *Tracker
}

// NewSimulator creates a Simulator. A nil source prices every attempt with the
// no-book heuristic; a nil model uses default parameters.
func NewSimulator(source orderbook.Source, model *fillmodel.Model, cfg Config, logger *zap.Logger) *Simulator {
	if model == nil {
		model = fillmodel.New(fillmodel.DefaultParams())
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		source:  source,
		model:   model,
		cfg:     cfg,
		logger:  logger,
		tracker: NewTracker(),
	}
}

// Tracker returns the run's execution tracker.
func (s *Simulator) Tracker() *Tracker {
	return s.tracker
}

// Model returns the fill model used for estimates.
func (s *Simulator) Model() *fillmodel.Model {
	return s.model
}

// SimulateExecution attempts o against bar using the snapshot nearest to ts.
// A zero ts uses the bar timestamp and an empty symbol uses the order symbol.
// Only context errors are returned; missing snapshots degrade to the fallback.
func (s *Simulator) SimulateExecution(ctx context.Context, o *order.Order, bar domain.Bar, ts int64, symbol string) (*Result, error) {
	if ts == 0 {
		ts = bar.Timestamp
	}
	if symbol == "" {
		symbol = o.Symbol
	}

	res := &Result{Timestamp: ts, Symbol: symbol}

	if !o.Terminal() {
		snap, warn, err := s.snapshot(ctx, symbol, ts)
		if err != nil {
			return nil, err
		}
		res.Snapshot = snap
		res.Warning = warn
		res.UsedFallback = snap == nil
	}

	res.Estimate = s.estimate(o, bar, res.Snapshot)
	res.Order = o.TryFill(bar, res.Snapshot)
	s.tracker.Record(o, res)

	if res.Order.NoTrade != nil {
		s.logger.Info("order cancelled without complete fill",
			zap.String("order_id", o.ID),
			zap.String("symbol", symbol),
			zap.String("reason", string(res.Order.NoTrade.Reason)),
			zap.Float64("filled_ratio", res.Order.NoTrade.FilledRatio),
			zap.Int("age_bars", res.Order.NoTrade.AgeBars),
		)
	}
	return res, nil
}

// SimulateOrderSequence runs each step in order. Bar timestamps must be
// strictly increasing; otherwise ErrOutOfOrder is returned before any attempt.
func (s *Simulator) SimulateOrderSequence(ctx context.Context, steps []Step) ([]*Result, error) {
	for i := 1; i < len(steps); i++ {
		if steps[i].Bar.Timestamp <= steps[i-1].Bar.Timestamp {
			return nil, fmt.Errorf("%w: step %d at %d after %d",
				ErrOutOfOrder, i, steps[i].Bar.Timestamp, steps[i-1].Bar.Timestamp)
		}
	}

	results := make([]*Result, 0, len(steps))
	for _, st := range steps {
		res, err := s.SimulateExecution(ctx, st.Order, st.Bar, 0, "")
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Simulator) snapshot(ctx context.Context, symbol string, ts int64) (*domain.OrderBookSnapshot, *OrderBookWarning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	reason := orderbook.ReasonNotFound
	if s.source != nil {
		snap, err := s.source.GetSnapshot(ctx, symbol, ts, s.cfg.Tolerance)
		if err == nil && snap != nil {
			return snap, nil, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		if err != nil {
			reason = orderbook.ReasonOf(err)
		}
	}

	warn := &OrderBookWarning{
		Symbol:           symbol,
		Timestamp:        ts,
		Reason:           reason,
		ToleranceSeconds: s.cfg.Tolerance.Seconds(),
	}
	s.tracker.RecordFallback(*warn)
	observability.RecordOrderBookFallback(string(reason))
	s.logger.Warn("order book snapshot unavailable, using no-book fill",
		zap.String("symbol", symbol),
		zap.Int64("timestamp", ts),
		zap.String("reason", string(reason)),
		zap.Float64("tolerance_seconds", warn.ToleranceSeconds),
	)
	return nil, warn, nil
}

func (s *Simulator) estimate(o *order.Order, bar domain.Bar, snap *domain.OrderBookSnapshot) fillmodel.Estimate {
	if snap == nil {
		return s.model.NoBookEstimate(o.Side, bar.Close)
	}
	return s.model.FillProbability(o.Side, o.Remaining()*snap.MidPrice(), snap, bar.RangeVolatility())
}
