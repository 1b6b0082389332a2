// Package position owns an open position and re-derives its protective
// levels after every fill, recording each change as an audit event.
package position

import (
	"errors"
	"fmt"
	"math"

	"execution-lab/internal/domain"
)

// Errors returned by the Rebalancer.
var (
	ErrNoPosition    = errors.New("no open position")
	ErrPositionOpen  = errors.New("position already open")
	ErrInvalidFill   = errors.New("invalid fill")
	ErrInvalidLevels = errors.New("invalid stop/target levels")
)

// Reason labels a StopRebalanceEvent.
type Reason string

// Rebalance reasons.
const (
	ReasonFill         Reason = "fill"
	ReasonManual       Reason = "manual"
	ReasonRegimeChange Reason = "regime_change"
	ReasonTrailing     Reason = "trailing_stop"
	ReasonScaleOut     Reason = "scale_out"
	ReasonClose        Reason = "close"
)

// Config derives protective levels from the average entry.
// Absolute per-unit distances take precedence over the percentage and ratio.
type Config struct {
	RiskPerUnit     float64 `yaml:"risk_per_unit"`
	RiskPct         float64 `yaml:"risk_pct"`
	RewardPerUnit   float64 `yaml:"reward_per_unit"`
	RiskRewardRatio float64 `yaml:"risk_reward_ratio"`
}

// DefaultConfig returns a 2% stop with a 2:1 target.
func DefaultConfig() Config {
	return Config{RiskPct: 0.02, RiskRewardRatio: 2.0}
}

// Fill is one execution applied to the position.
type Fill struct {
	Timestamp int64
	Price     float64
	Qty       float64
	OrderID   string
}

// Position is an open position in one symbol.
type Position struct {
	Symbol         string
	Side           domain.PositionSide
	Size           float64
	AvgEntry       float64
	StopLoss       float64
	TakeProfit     float64
	RiskPerUnit    float64
	RewardPerUnit  float64
	OpenedAt       int64
	HighSinceEntry float64
	LowSinceEntry  float64
	Trailing       bool // stop last moved by a trailing update
	Fills          []Fill
}

// StopRebalanceEvent is an immutable record of a level change.
type StopRebalanceEvent struct {
	Timestamp     int64
	OrderID       string
	FillPrice     float64
	FillQty       float64
	OldStopLoss   float64
	NewStopLoss   float64
	OldTakeProfit float64
	NewTakeProfit float64
	OldAvgEntry   float64
	NewAvgEntry   float64
	Reason        Reason
	Detail        string
}

// Reduction describes quantity removed from the position.
type Reduction struct {
	Qty       float64
	AvgEntry  float64
	OpenedAt  int64
	Remaining float64
	Closed    bool
}

// Rebalancer owns at most one open position per run.
// It is not safe for concurrent use.
type Rebalancer struct {
	cfg            Config
	riskMultiplier float64
	pos            *Position
	history        []StopRebalanceEvent
}

// NewRebalancer creates a Rebalancer. Zero ratio fields fall back to defaults.
func NewRebalancer(cfg Config) *Rebalancer {
	def := DefaultConfig()
	if cfg.RiskPerUnit <= 0 && cfg.RiskPct <= 0 {
		cfg.RiskPct = def.RiskPct
	}
	if cfg.RewardPerUnit <= 0 && cfg.RiskRewardRatio <= 0 {
		cfg.RiskRewardRatio = def.RiskRewardRatio
	}
	return &Rebalancer{cfg: cfg, riskMultiplier: 1}
}

// Open starts a flat position that the next fill will size.
func (r *Rebalancer) Open(symbol string, side domain.PositionSide, ts int64) error {
	if r.pos != nil {
		return ErrPositionOpen
	}
	r.pos = &Position{Symbol: symbol, Side: side, OpenedAt: ts}
	r.riskMultiplier = 1
	return nil
}

// IsOpen reports whether a position with non-zero size exists.
func (r *Rebalancer) IsOpen() bool {
	return r.pos != nil && r.pos.Size > 0
}

// Position returns a copy of the open position, or nil.
func (r *Rebalancer) Position() *Position {
	if r.pos == nil {
		return nil
	}
	p := *r.pos
	p.Fills = append([]Fill(nil), r.pos.Fills...)
	return &p
}

// History returns a copy of all rebalance events in order.
func (r *Rebalancer) History() []StopRebalanceEvent {
	return append([]StopRebalanceEvent(nil), r.history...)
}

// ApplyFillAndRebalance adds a fill, recomputes the weighted-average entry
// and re-anchors stop and target to the new average.
func (r *Rebalancer) ApplyFillAndRebalance(price, qty float64, ts int64, orderID string) (StopRebalanceEvent, error) {
	if r.pos == nil {
		return StopRebalanceEvent{}, ErrNoPosition
	}
	if !(price > 0) || !(qty > 0) || math.IsInf(price, 0) || math.IsInf(qty, 0) {
		return StopRebalanceEvent{}, fmt.Errorf("%w: price=%v qty=%v", ErrInvalidFill, price, qty)
	}

	p := r.pos
	ev := r.begin(ts, ReasonFill)
	ev.OrderID = orderID
	ev.FillPrice = price
	ev.FillQty = qty

	if p.Size == 0 {
		p.OpenedAt = ts
		p.HighSinceEntry = price
		p.LowSinceEntry = price
	}
	p.AvgEntry = (p.AvgEntry*p.Size + price*qty) / (p.Size + qty)
	p.Size += qty
	p.Fills = append(p.Fills, Fill{Timestamp: ts, Price: price, Qty: qty, OrderID: orderID})
	r.derive()
	p.Trailing = false

	return r.commit(ev), nil
}

// ManualRebalance overrides stop and target. A zero level keeps the current one.
func (r *Rebalancer) ManualRebalance(stop, target float64, ts int64, detail string) (StopRebalanceEvent, error) {
	if !r.IsOpen() {
		return StopRebalanceEvent{}, ErrNoPosition
	}
	p := r.pos
	if stop == 0 {
		stop = p.StopLoss
	}
	if target == 0 {
		target = p.TakeProfit
	}
	if stop < 0 || target < 0 || (p.Side.Sign()*(target-stop) <= 0) {
		return StopRebalanceEvent{}, fmt.Errorf("%w: stop=%v target=%v side=%s", ErrInvalidLevels, stop, target, p.Side)
	}

	ev := r.begin(ts, ReasonManual)
	ev.Detail = detail
	p.StopLoss = stop
	p.TakeProfit = target
	p.RiskPerUnit = math.Abs(p.AvgEntry - stop)
	p.RewardPerUnit = math.Abs(target - p.AvgEntry)
	p.Trailing = false
	return r.commit(ev), nil
}

// RegimeChangeRebalance scales the configured risk distance by riskMultiplier
// and re-derives both levels. The multiplier applies to later fills as well.
func (r *Rebalancer) RegimeChangeRebalance(regime string, riskMultiplier float64, ts int64) (StopRebalanceEvent, error) {
	if !r.IsOpen() {
		return StopRebalanceEvent{}, ErrNoPosition
	}
	if !(riskMultiplier > 0) {
		return StopRebalanceEvent{}, fmt.Errorf("%w: risk multiplier %v", ErrInvalidLevels, riskMultiplier)
	}

	ev := r.begin(ts, ReasonRegimeChange)
	ev.Detail = regime
	r.riskMultiplier = riskMultiplier
	r.derive()
	r.pos.Trailing = false
	return r.commit(ev), nil
}

// UpdateTrailingStop trails the stop by distance from the best price since
// entry. The stop only moves in the position's favor; moved is false and no
// event is recorded otherwise.
func (r *Rebalancer) UpdateTrailingStop(distance float64, ts int64) (ev StopRebalanceEvent, moved bool, err error) {
	if !r.IsOpen() {
		return StopRebalanceEvent{}, false, ErrNoPosition
	}
	if !(distance > 0) {
		return StopRebalanceEvent{}, false, fmt.Errorf("%w: trailing distance %v", ErrInvalidLevels, distance)
	}

	p := r.pos
	var next float64
	if p.Side == domain.PositionShort {
		next = p.LowSinceEntry + distance
		if p.StopLoss > 0 && next >= p.StopLoss {
			return StopRebalanceEvent{}, false, nil
		}
	} else {
		next = p.HighSinceEntry - distance
		if next <= p.StopLoss || next <= 0 {
			return StopRebalanceEvent{}, false, nil
		}
	}

	ev = r.begin(ts, ReasonTrailing)
	ev.Detail = fmt.Sprintf("distance=%g", distance)
	p.StopLoss = next
	p.Trailing = true
	return r.commit(ev), true, nil
}

// Reduce removes qty from the position at price. Reducing to zero closes it.
func (r *Rebalancer) Reduce(qty, price float64, ts int64) (Reduction, error) {
	if !r.IsOpen() {
		return Reduction{}, ErrNoPosition
	}
	if !(qty > 0) {
		return Reduction{}, fmt.Errorf("%w: reduce qty %v", ErrInvalidFill, qty)
	}

	p := r.pos
	if qty > p.Size {
		qty = p.Size
	}
	red := Reduction{Qty: qty, AvgEntry: p.AvgEntry, OpenedAt: p.OpenedAt}

	reason := ReasonScaleOut
	if qty >= p.Size {
		reason = ReasonClose
	}
	ev := r.begin(ts, reason)
	ev.FillPrice = price
	ev.FillQty = -qty

	p.Size -= qty
	red.Remaining = p.Size
	if reason == ReasonClose {
		p.Size = 0
		red.Remaining = 0
		red.Closed = true
	}
	r.commit(ev)

	if red.Closed {
		r.pos = nil
	}
	return red, nil
}

// Discard drops a position that never received a fill.
func (r *Rebalancer) Discard() {
	if r.pos != nil && r.pos.Size == 0 {
		r.pos = nil
	}
}

// MarkBar updates the extremes since entry.
func (r *Rebalancer) MarkBar(bar domain.Bar) {
	if !r.IsOpen() {
		return
	}
	r.pos.HighSinceEntry = math.Max(r.pos.HighSinceEntry, bar.High)
	r.pos.LowSinceEntry = math.Min(r.pos.LowSinceEntry, bar.Low)
}

func (r *Rebalancer) derive() {
	p := r.pos
	risk := r.cfg.RiskPerUnit
	if risk <= 0 {
		risk = r.cfg.RiskPct * p.AvgEntry
	}
	risk *= r.riskMultiplier

	reward := r.cfg.RewardPerUnit
	if reward <= 0 {
		reward = risk * r.cfg.RiskRewardRatio
	} else {
		reward *= r.riskMultiplier
	}

	sign := p.Side.Sign()
	p.RiskPerUnit = risk
	p.RewardPerUnit = reward
	p.StopLoss = math.Max(0, p.AvgEntry-sign*risk)
	p.TakeProfit = math.Max(0, p.AvgEntry+sign*reward)
}

func (r *Rebalancer) begin(ts int64, reason Reason) StopRebalanceEvent {
	return StopRebalanceEvent{
		Timestamp:     ts,
		OldStopLoss:   r.pos.StopLoss,
		OldTakeProfit: r.pos.TakeProfit,
		OldAvgEntry:   r.pos.AvgEntry,
		Reason:        reason,
	}
}

func (r *Rebalancer) commit(ev StopRebalanceEvent) StopRebalanceEvent {
	ev.NewStopLoss = r.pos.StopLoss
	ev.NewTakeProfit = r.pos.TakeProfit
	ev.NewAvgEntry = r.pos.AvgEntry
	r.history = append(r.history, ev)
	return ev
}
