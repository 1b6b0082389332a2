package backtest

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"execution-lab/internal/domain"
	"execution-lab/internal/execution"
	"execution-lab/internal/fillmodel"
	"execution-lab/internal/idhash"
	"execution-lab/internal/observability"
	"execution-lab/internal/order"
	"execution-lab/internal/position"
	"execution-lab/internal/replay"
	"execution-lab/internal/tracking"
)

type role int

const (
	roleEntry role = iota
	roleExit
)

// working is a live order with the intent that created it.
type working struct {
	order      *order.Order
	role       role
	exitReason string
	stop       float64 // entry: explicit levels applied after each fill
	target     float64
	trail      float64
}

type gapStats struct {
	count       int
	significant int
	missing     int
}

// Engine replays bars through a strategy, simulating executions and keeping
// a theoretical and a realistic ledger. Implements replay.BarHandler.
// An Engine is owned by one run.
type Engine struct {
	cfg      Config
	strategy Strategy
	symbol   string
	runID    string
	sim      *execution.Simulator
	model    *fillmodel.Model
	reb      *position.Rebalancer
	logger   *zap.Logger

	bars      []domain.Bar
	timeframe int64
	gaps      gapStats

	working  []*working
	orderSeq int
	tradeSeq int

	real         ledger
	theo         ledger
	theoAvgEntry float64
	entryFees    float64
	trail        float64

	trades     []*domain.TradeRecord
	curve      []domain.EquityPoint
	invalid    []InvalidSignal
	violations []IntegrityViolation
}

// NewEngine creates a new backtest engine. A nil simulator prices every
// order with the no-book heuristic.
func NewEngine(strategy Strategy, symbol, runID string, sim *execution.Simulator, cfg Config, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if sim == nil {
		sim = execution.NewSimulator(nil, nil, cfg.Execution, logger)
	}
	return &Engine{
		cfg:       cfg,
		strategy:  strategy,
		symbol:    symbol,
		runID:     runID,
		sim:       sim,
		model:     sim.Model(),
		reb:       position.NewRebalancer(cfg.Position),
		logger:    logger.With(zap.String("run_id", runID), zap.String("symbol", symbol)),
		timeframe: cfg.TimeframeMs,
		real:      ledger{cash: cfg.InitialCapital},
		theo:      ledger{cash: cfg.InitialCapital},
	}
}

// OnBar processes one bar. A duplicate or out-of-order timestamp returns a
// *TemporalError and the run must be discarded.
func (e *Engine) OnBar(ctx context.Context, bar *domain.Bar) error {
	if err := e.checkTemporal(bar); err != nil {
		return err
	}
	e.bars = append(e.bars, *bar)
	observability.RecordBar()

	if err := e.processWorking(ctx, *bar); err != nil {
		return err
	}
	if err := e.checkProtective(ctx, *bar); err != nil {
		return err
	}

	e.reb.MarkBar(*bar)
	if e.trail > 0 && e.reb.IsOpen() {
		if _, _, err := e.reb.UpdateTrailingStop(e.trail, bar.Timestamp); err != nil {
			e.logger.Warn("trailing stop update failed", zap.Error(err))
		}
	}

	sig, err := e.strategy.OnBar(ctx, e.context(*bar))
	if err != nil {
		return fmt.Errorf("strategy %s at %d: %w", e.strategy.Name(), bar.Timestamp, err)
	}
	if sig != nil {
		if err := ValidateSignal(sig, e.reb.Position()); err != nil {
			e.rejectSignal(bar.Timestamp, sig.Action, err)
		} else if err := e.dispatch(*bar, sig); err != nil {
			e.rejectSignal(bar.Timestamp, sig.Action, err)
		}
	}

	e.markEquity(bar.Timestamp, bar.Close, false)
	return nil
}

// OnEnd cancels working orders and, unless configured otherwise, closes the
// open position at the last close. The last equity point is re-marked.
func (e *Engine) OnEnd(_ context.Context) error {
	if len(e.bars) == 0 {
		return nil
	}
	last := e.bars[len(e.bars)-1]
	e.cancelWorking(last.Timestamp, func(*working) bool { return true })

	if e.cfg.KeepOpenAtEnd || !e.reb.IsOpen() {
		return nil
	}
	pos := e.reb.Position()
	side := pos.Side.ExitSide()
	price := e.model.NoBookEstimate(side, last.Close).ExpectedPrice
	e.applyExit(pos.Size, price, last.Close, side, last.Timestamp, domain.ExitReasonEndOfData, "")
	e.markEquity(last.Timestamp, last.Close, true)
	return nil
}

func (e *Engine) checkTemporal(bar *domain.Bar) error {
	n := len(e.bars)
	if n == 0 {
		return nil
	}
	prev := e.bars[n-1].Timestamp
	if bar.Timestamp <= prev {
		return &TemporalError{Index: n, Timestamp: bar.Timestamp, Previous: prev}
	}

	delta := bar.Timestamp - prev
	if e.cfg.TimeframeMs <= 0 && (e.timeframe <= 0 || delta < e.timeframe) {
		// Inferred timeframe is the smallest spacing seen so far; earlier
		// spacings are reclassified against it.
		e.timeframe = delta
		e.gaps = gapStats{}
		for i := 1; i < n; i++ {
			e.recordGap(e.bars[i].Timestamp - e.bars[i-1].Timestamp)
		}
		if n > 1 {
			e.logger.Debug("timeframe inferred", zap.Int64("timeframe_ms", delta), zap.Int("gaps", e.gaps.count))
		}
		return nil
	}

	missing, significant := e.recordGap(delta)
	if missing < 1 {
		return nil
	}
	if significant {
		e.logger.Warn("significant gap in bar stream",
			zap.Int64("from", prev), zap.Int64("to", bar.Timestamp), zap.Int("missing_bars", missing))
	} else {
		e.logger.Info("gap in bar stream",
			zap.Int64("from", prev), zap.Int64("to", bar.Timestamp), zap.Int("missing_bars", missing))
	}
	return nil
}

// recordGap classifies the spacing delta against the current timeframe and
// adds it to the gap counters.
func (e *Engine) recordGap(delta int64) (int, bool) {
	missing := int(math.Round(float64(delta)/float64(e.timeframe))) - 1
	if missing < 1 {
		return 0, false
	}
	significant := float64(delta) > e.cfg.GapThresholdMultiplier*float64(e.timeframe)
	e.gaps.count++
	e.gaps.missing += missing
	if significant {
		e.gaps.significant++
	}
	return missing, significant
}

func (e *Engine) processWorking(ctx context.Context, bar domain.Bar) error {
	for i := 0; i < len(e.working); i++ {
		w := e.working[i]
		if w.order.Terminal() {
			continue
		}
		res, err := e.sim.SimulateExecution(ctx, w.order, bar, 0, e.symbol)
		if err != nil {
			return err
		}
		e.applyResult(w, res, bar.Timestamp)
	}
	e.prune()
	return nil
}

func (e *Engine) applyResult(w *working, res *execution.Result, ts int64) {
	if res.Order.NewFillQty <= 0 {
		return
	}
	f := res.Order.PartialFills[len(res.Order.PartialFills)-1]

	if w.role == roleEntry {
		e.applyEntry(w, f.Qty, f.Price, f.ReferencePrice, ts)
		return
	}
	e.applyExit(f.Qty, f.Price, f.ReferencePrice, w.order.Side, ts, w.exitReason, w.order.ID)
}

func (e *Engine) applyEntry(w *working, qty, price, ref float64, ts int64) {
	side := w.order.Side
	if !e.reb.IsOpen() {
		e.reb.Discard()
		if err := e.reb.Open(e.symbol, domain.PositionSideFor(side), ts); err != nil {
			e.logger.Error("open position", zap.Error(err))
			return
		}
	}
	prevSize := 0.0
	if p := e.reb.Position(); p != nil {
		prevSize = p.Size
	}
	if _, err := e.reb.ApplyFillAndRebalance(price, qty, ts, w.order.ID); err != nil {
		e.logger.Error("apply entry fill", zap.Error(err))
		return
	}
	if w.stop > 0 || w.target > 0 {
		if _, err := e.reb.ManualRebalance(w.stop, w.target, ts, "signal levels"); err != nil {
			e.logger.Warn("signal levels rejected", zap.Error(err))
		}
	}
	if w.trail > 0 {
		e.trail = w.trail
	}

	fee := qty * price * e.cfg.FeeRate
	ideal := idealPrice(side, ref, price)
	e.real.apply(side, qty, price, fee)
	e.theo.apply(side, qty, ideal, 0)
	e.theoAvgEntry = (e.theoAvgEntry*prevSize + ideal*qty) / (prevSize + qty)
	e.entryFees += fee
}

func (e *Engine) applyExit(qty, price, ref float64, side domain.Side, ts int64, reason, orderID string) {
	pos := e.reb.Position()
	if pos == nil || pos.Size <= 0 {
		return
	}
	red, err := e.reb.Reduce(qty, price, ts)
	if err != nil {
		e.logger.Error("apply exit fill", zap.Error(err))
		return
	}
	q := red.Qty

	fee := q * price * e.cfg.FeeRate
	ideal := idealPrice(side, ref, price)
	e.real.apply(side, q, price, fee)
	e.theo.apply(side, q, ideal, 0)

	entryFee := e.entryFees * q / pos.Size
	e.entryFees -= entryFee

	sign := pos.Side.Sign()
	pnlReal := sign*(price-red.AvgEntry)*q - entryFee - fee
	trade := &domain.TradeRecord{
		RunID:                 e.runID,
		StrategyID:            e.strategy.Name(),
		Symbol:                e.symbol,
		Side:                  pos.Side,
		Quantity:              q,
		EntryTime:             red.OpenedAt,
		EntryPrice:            red.AvgEntry,
		EntryPriceTheoretical: e.theoAvgEntry,
		ExitTime:              ts,
		ExitPrice:             price,
		ExitPriceTheoretical:  ideal,
		ExitReason:            reason,
		Fees:                  entryFee + fee,
		PnLTheoretical:        sign * (ideal - e.theoAvgEntry) * q,
		PnLRealistic:          pnlReal,
		Partial:               !red.Closed,
	}
	if notional := red.AvgEntry * q; notional > 0 {
		trade.ReturnPct = pnlReal / notional * 100
	}
	trade.TradeID = idhash.ComputeTradeID(e.runID, e.symbol, trade.EntryTime, trade.ExitTime, e.tradeSeq)
	e.tradeSeq++
	e.trades = append(e.trades, trade)
	observability.RecordTrade()

	e.logger.Debug("trade closed",
		zap.String("trade_id", trade.TradeID),
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.Float64("qty", q),
		zap.Float64("pnl_realistic", pnlReal),
		zap.Bool("partial", trade.Partial),
	)

	if red.Closed {
		e.theoAvgEntry = 0
		e.entryFees = 0
		e.trail = 0
		e.cancelWorking(ts, func(*working) bool { return true })
	}
}

// checkProtective submits an exit when the bar touches the position's stop or
// target. Positions filled on this bar and positions with a working exit are skipped.
func (e *Engine) checkProtective(ctx context.Context, bar domain.Bar) error {
	pos := e.reb.Position()
	if pos == nil || pos.Size <= 0 || pos.OpenedAt == bar.Timestamp || e.hasWorking(roleExit) {
		return nil
	}
	trig, hit := e.reb.CheckTriggers(bar)
	if !hit {
		return nil
	}

	kind := order.KindStop
	if trig.Reason == domain.ExitReasonTakeProfit {
		kind = order.KindLimit
	}
	w := e.submitExit(bar.Timestamp, kind, pos.Size, trig.Level, trig.Reason)
	if w == nil {
		return nil
	}
	res, err := e.sim.SimulateExecution(ctx, w.order, bar, 0, e.symbol)
	if err != nil {
		return err
	}
	e.applyResult(w, res, bar.Timestamp)
	e.prune()
	return nil
}

func (e *Engine) dispatch(bar domain.Bar, sig *Signal) error {
	ts := bar.Timestamp
	pos := e.reb.Position()

	switch sig.Action {
	case ActionEnter:
		if e.hasWorking(roleEntry) {
			return invalid(sig.Action, "entry order already working")
		}
		qty := e.entrySize(sig)
		if !(qty > 0) {
			return invalid(sig.Action, "computed size %v is not positive", qty)
		}
		w := e.submitEntry(ts, sig.Side, sig.Kind, qty, *sig.EntryPrice)
		if w == nil {
			return nil
		}
		w.stop = deref(sig.StopLoss)
		w.target = deref(sig.TakeProfit)
		w.trail = deref(sig.TrailingDistance)

	case ActionExit:
		e.cancelWorking(ts, func(*working) bool { return true })
		reason := sig.ExitReason
		if reason == "" {
			reason = domain.ExitReasonSignal
		}
		e.submitExit(ts, order.KindMarket, pos.Size, 0, reason)

	case ActionStopLoss:
		if sig.StopLoss != nil {
			if _, err := e.reb.ManualRebalance(*sig.StopLoss, 0, ts, "stop_loss signal"); err != nil {
				return invalid(sig.Action, "%v", err)
			}
			pos = e.reb.Position()
		}
		e.cancelWorking(ts, isExit)
		e.submitExit(ts, order.KindStop, pos.Size, pos.StopLoss, domain.ExitReasonStopLoss)

	case ActionTakeProfit:
		if sig.TakeProfit != nil {
			if _, err := e.reb.ManualRebalance(0, *sig.TakeProfit, ts, "take_profit signal"); err != nil {
				return invalid(sig.Action, "%v", err)
			}
			pos = e.reb.Position()
		}
		e.cancelWorking(ts, isExit)
		e.submitExit(ts, order.KindLimit, pos.Size, pos.TakeProfit, domain.ExitReasonTakeProfit)

	case ActionTrailingStop:
		e.trail = *sig.TrailingDistance
		if _, _, err := e.reb.UpdateTrailingStop(e.trail, ts); err != nil {
			return invalid(sig.Action, "%v", err)
		}

	case ActionAdjust:
		size := *sig.Size
		if size > 0 {
			e.submitEntry(ts, pos.Side.EntrySide(), order.KindMarket, size*e.cfg.SizeMultiplier, bar.Close)
			return nil
		}
		e.cancelWorking(ts, isExit)
		e.submitExit(ts, order.KindMarket, -size, 0, domain.ExitReasonScaleOut)
	}
	return nil
}

func (e *Engine) entrySize(sig *Signal) float64 {
	if sig.Size != nil {
		return *sig.Size * e.cfg.SizeMultiplier
	}
	equity := e.real.equity(*sig.EntryPrice)
	return equity * e.cfg.PositionSizePct * e.cfg.SizeMultiplier / *sig.EntryPrice
}

func (e *Engine) submitEntry(ts int64, side domain.Side, kind order.Kind, qty, price float64) *working {
	p := order.Params{
		ID:        e.nextOrderID(),
		Symbol:    e.symbol,
		Kind:      kind,
		Side:      side,
		Quantity:  qty,
		CreatedAt: ts,
	}
	switch kind {
	case order.KindLimit:
		p.LimitPrice = price
	case order.KindStop:
		p.StopPrice = price
	default:
		p.Kind = order.KindMarket
	}
	return e.submit(p, roleEntry, "")
}

func (e *Engine) submitExit(ts int64, kind order.Kind, qty, level float64, reason string) *working {
	pos := e.reb.Position()
	p := order.Params{
		ID:        e.nextOrderID(),
		Symbol:    e.symbol,
		Kind:      kind,
		Side:      pos.Side.ExitSide(),
		Quantity:  qty,
		CreatedAt: ts,
	}
	switch kind {
	case order.KindLimit:
		p.LimitPrice = level
	case order.KindStop:
		p.StopPrice = level
		p.TriggerType = order.StopTriggerMarket
	}
	return e.submit(p, roleExit, reason)
}

func (e *Engine) submit(p order.Params, r role, reason string) *working {
	o, err := order.New(p, e.cfg.Order, e.model)
	if err != nil {
		e.sim.Tracker().RecordRejected()
		e.logger.Warn("order rejected", zap.String("kind", string(p.Kind)), zap.Error(err))
		return nil
	}
	w := &working{order: o, role: r, exitReason: reason}
	e.working = append(e.working, w)
	return w
}

func (e *Engine) nextOrderID() string {
	id := idhash.ComputeOrderID(e.runID, e.orderSeq)
	e.orderSeq++
	return id
}

func isExit(w *working) bool { return w.role == roleExit }

func (e *Engine) hasWorking(r role) bool {
	for _, w := range e.working {
		if w.role == r && !w.order.Terminal() {
			return true
		}
	}
	return false
}

func (e *Engine) cancelWorking(ts int64, match func(*working) bool) {
	for _, w := range e.working {
		if w.order.Terminal() || !match(w) {
			continue
		}
		res := w.order.Cancel(ts, domain.NoTradeTimeout)
		e.sim.Tracker().RecordCancel(w.order, res)
	}
	e.prune()
}

func (e *Engine) prune() {
	live := e.working[:0]
	for _, w := range e.working {
		if !w.order.Terminal() {
			live = append(live, w)
		}
	}
	for i := len(live); i < len(e.working); i++ {
		e.working[i] = nil
	}
	e.working = live
}

func (e *Engine) rejectSignal(ts int64, a Action, err error) {
	e.invalid = append(e.invalid, InvalidSignal{Timestamp: ts, Action: a, Reason: err.Error()})
	observability.RecordInvalidSignal(string(a))
	e.logger.Warn("invalid signal skipped", zap.Int64("timestamp", ts), zap.Error(err))
}

func (e *Engine) context(bar domain.Bar) *Context {
	pending := 0
	for _, w := range e.working {
		if !w.order.Terminal() {
			pending++
		}
	}
	return &Context{
		Symbol:            e.symbol,
		Bar:               bar,
		Index:             len(e.bars) - 1,
		History:           e.bars,
		Position:          e.reb.Position(),
		PendingOrders:     pending,
		Cash:              e.real.cash,
		EquityRealistic:   e.real.equity(bar.Close),
		EquityTheoretical: e.theo.equity(bar.Close),
	}
}

// markEquity records both curves at mark. With replace the last point is
// re-marked in place.
func (e *Engine) markEquity(ts int64, mark float64, replace bool) {
	theo := e.theo.equity(mark)
	realistic := e.real.equity(mark)
	pt := domain.EquityPoint{
		Timestamp:           ts,
		EquityTheoretical:   theo,
		EquityRealistic:     realistic,
		EquityDivergencePct: domain.DivergencePct(theo, realistic),
	}
	if replace && len(e.curve) > 0 {
		e.curve[len(e.curve)-1] = pt
		if n := len(e.violations); n > 0 && e.violations[n-1].Timestamp == ts {
			e.violations = e.violations[:n-1]
		}
	} else {
		e.curve = append(e.curve, pt)
	}

	if realistic-theo > e.cfg.DivergenceTolerancePct/100*math.Abs(theo) {
		e.violations = append(e.violations, IntegrityViolation{Timestamp: ts, DivergencePct: pt.EquityDivergencePct})
		observability.RecordIntegrityViolation()
		e.logger.Error("realistic equity above theoretical",
			zap.Int64("timestamp", ts),
			zap.Float64("divergence_pct", pt.EquityDivergencePct),
		)
	}
}

// Result assembles the run output.
func (e *Engine) Result() *Result {
	tr := e.sim.Tracker()
	stats := tr.Stats()

	noTrades := tr.NoTradeEvents()
	rejected := stats.Rejected
	for i := range noTrades {
		noTrades[i].RunID = e.runID
		if noTrades[i].FilledQty == 0 {
			rejected++
		}
	}

	res := &Result{
		RunID:          e.runID,
		StrategyName:   e.strategy.Name(),
		Symbol:         e.symbol,
		InitialCapital: e.cfg.InitialCapital,
		Trades:         append([]*domain.TradeRecord(nil), e.trades...),
		EquityCurve:    append([]domain.EquityPoint(nil), e.curve...),
		ExecutionStats: ExecutionStats{
			PartialFills:           stats.PartialFills,
			RejectedOrders:         rejected,
			OrderBookFallbackCount: stats.FallbackCount,
			Detail:                 stats,
		},
		NoTradeEvents:       noTrades,
		OrderBookWarnings:   tr.Warnings(),
		RebalanceEvents:     e.reb.History(),
		InvalidSignals:      append([]InvalidSignal(nil), e.invalid...),
		IntegrityViolations: append([]IntegrityViolation(nil), e.violations...),
	}

	res.EquityTheoretical = make([]float64, len(e.curve))
	res.EquityRealistic = make([]float64, len(e.curve))
	for i, p := range e.curve {
		res.EquityTheoretical[i] = p.EquityTheoretical
		res.EquityRealistic[i] = p.EquityRealistic
	}
	if n := len(e.curve); n > 0 {
		res.StartTime = e.curve[0].Timestamp
		res.EndTime = e.curve[n-1].Timestamp
		res.FinalEquityTheoretical = e.curve[n-1].EquityTheoretical
		res.FinalEquityRealistic = e.curve[n-1].EquityRealistic
	}

	res.ReturnsPerPeriod = ReturnsPerPeriod{
		Daily:   PeriodReturns(e.curve, PeriodDaily),
		Weekly:  PeriodReturns(e.curve, PeriodWeekly),
		Monthly: PeriodReturns(e.curve, PeriodMonthly),
	}
	res.TrackingError = tracking.FromCurves(res.EquityTheoretical, res.EquityRealistic, e.cfg.Tracking)
	res.TemporalValidation = e.temporalValidation()

	switch {
	case len(e.violations) > 0:
		res.MetricsStatus = MetricsIntegrityViolation
	case res.TemporalValidation.Status != TemporalPassed:
		res.MetricsStatus = MetricsNonAuthoritative
	default:
		res.MetricsStatus = MetricsOK
	}
	return res
}

func (e *Engine) temporalValidation() TemporalValidation {
	tv := TemporalValidation{
		Status:              TemporalPassed,
		BarCount:            len(e.bars),
		TimeframeMs:         e.timeframe,
		GapCount:            e.gaps.count,
		SignificantGapCount: e.gaps.significant,
		MissingBars:         e.gaps.missing,
	}
	if expected := tv.BarCount + tv.MissingBars; expected > 0 {
		tv.GapRatio = float64(tv.MissingBars) / float64(expected)
	}
	if tv.GapRatio > e.cfg.MaxGapRatio {
		tv.Status = TemporalFailed
	}
	return tv
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Ensure Engine implements replay.BarHandler and replay.EndHandler
var (
	_ replay.BarHandler = (*Engine)(nil)
	_ replay.EndHandler = (*Engine)(nil)
)
