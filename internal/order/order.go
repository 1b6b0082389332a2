// Package order implements the MARKET/LIMIT/STOP order state machine.
package order

import (
	"errors"
	"fmt"
	"math"

	"execution-lab/internal/domain"
	"execution-lab/internal/fillmodel"
)

// Kind is the closed set of order types.
type Kind string

// Order kinds.
const (
	KindMarket Kind = "MARKET"
	KindLimit  Kind = "LIMIT"
	KindStop   Kind = "STOP"
)

// Status is the lifecycle state of an order.
type Status string

// Order statuses. FILLED and CANCELLED are terminal.
const (
	StatusPending         Status = "PENDING"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
)

// StopTrigger selects how a triggered stop order executes.
type StopTrigger string

// Stop trigger types.
const (
	StopTriggerMarket StopTrigger = "market"
	StopTriggerLimit  StopTrigger = "limit"
)

// ErrInvalidOrder is returned when an order cannot be constructed.
var ErrInvalidOrder = errors.New("invalid order")

// Config holds order lifecycle settings.
type Config struct {
	MaxWaitBars       int         `yaml:"max_wait_bars"`
	StopTriggerType   StopTrigger `yaml:"stop_trigger_type"`
	ParticipationRate float64     `yaml:"participation_rate"` // share of visible depth an order may take
}

// DefaultConfig returns the default order configuration.
func DefaultConfig() Config {
	return Config{
		MaxWaitBars:       3,
		StopTriggerType:   StopTriggerMarket,
		ParticipationRate: 1.0,
	}
}

// Params describes the order to create.
type Params struct {
	ID          string
	Symbol      string
	Kind        Kind
	Side        domain.Side
	Quantity    float64
	LimitPrice  float64     // LIMIT, or STOP with limit trigger
	StopPrice   float64     // STOP
	TriggerType StopTrigger // STOP only; empty uses Config.StopTriggerType
	CreatedAt   int64
}

// Fill is one execution against a bar.
type Fill struct {
	Timestamp      int64
	Qty            float64
	Price          float64
	ReferencePrice float64
}

// Result is the observable outcome of a TryFill call.
type Result struct {
	OrderID        string
	Status         Status
	NewFillQty     float64 // quantity filled by this call
	FilledQty      float64 // cumulative
	AvgPrice       float64
	FilledNotional float64
	ReferencePrice float64 // quantity-weighted ideal price of the fills
	SlippagePct    float64 // adverse slippage vs reference, percent
	SlippageBps    float64
	PartialFills   []Fill
	NoTrade        *domain.NoTradeEvent // set when the order is cancelled
}

type blockReason int

const (
	blockNone blockReason = iota
	blockPrice
	blockDepth
)

// Order is a single order moving through PENDING -> PARTIALLY_FILLED -> FILLED | CANCELLED.
// An Order is owned by one run and is not safe for concurrent use.
type Order struct {
	ID          string
	Symbol      string
	Kind        Kind
	Side        domain.Side
	Quantity    float64
	LimitPrice  float64
	StopPrice   float64
	TriggerType StopTrigger
	CreatedAt   int64

	cfg   Config
	model *fillmodel.Model

	status         Status
	age            int
	filledQty      float64
	filledNotional float64
	refNotional    float64
	fills          []Fill
	triggered      bool
	targetPrice    float64
	lastBlock      blockReason
	final          *Result
}

// New validates p and creates a PENDING order. A nil model uses default parameters.
func New(p Params, cfg Config, model *fillmodel.Model) (*Order, error) {
	if !p.Side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, p.Side)
	}
	if !(p.Quantity > 0) || math.IsInf(p.Quantity, 0) {
		return nil, fmt.Errorf("%w: quantity must be positive, got %v", ErrInvalidOrder, p.Quantity)
	}
	if cfg.MaxWaitBars < 1 {
		cfg.MaxWaitBars = 1
	}
	if cfg.ParticipationRate <= 0 {
		cfg.ParticipationRate = 1.0
	}
	if model == nil {
		model = fillmodel.New(fillmodel.DefaultParams())
	}

	o := &Order{
		ID:         p.ID,
		Symbol:     p.Symbol,
		Kind:       p.Kind,
		Side:       p.Side,
		Quantity:   p.Quantity,
		LimitPrice: p.LimitPrice,
		StopPrice:  p.StopPrice,
		CreatedAt:  p.CreatedAt,
		cfg:        cfg,
		model:      model,
		status:     StatusPending,
	}

	switch p.Kind {
	case KindMarket:
	case KindLimit:
		if !(p.LimitPrice > 0) {
			return nil, fmt.Errorf("%w: LIMIT requires limit price", ErrInvalidOrder)
		}
		o.targetPrice = p.LimitPrice
	case KindStop:
		if !(p.StopPrice > 0) {
			return nil, fmt.Errorf("%w: STOP requires stop price", ErrInvalidOrder)
		}
		o.TriggerType = p.TriggerType
		if o.TriggerType == "" {
			o.TriggerType = cfg.StopTriggerType
		}
		if o.TriggerType == "" {
			o.TriggerType = StopTriggerMarket
		}
		if o.TriggerType == StopTriggerLimit && !(p.LimitPrice > 0) {
			return nil, fmt.Errorf("%w: stop-limit requires limit price", ErrInvalidOrder)
		}
		o.targetPrice = p.StopPrice
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidOrder, p.Kind)
	}

	return o, nil
}

// NewMarket creates a MARKET order.
func NewMarket(id, symbol string, side domain.Side, qty float64, createdAt int64, cfg Config, model *fillmodel.Model) (*Order, error) {
	return New(Params{ID: id, Symbol: symbol, Kind: KindMarket, Side: side, Quantity: qty, CreatedAt: createdAt}, cfg, model)
}

// NewLimit creates a LIMIT order resting at limit.
func NewLimit(id, symbol string, side domain.Side, qty, limit float64, createdAt int64, cfg Config, model *fillmodel.Model) (*Order, error) {
	return New(Params{ID: id, Symbol: symbol, Kind: KindLimit, Side: side, Quantity: qty, LimitPrice: limit, CreatedAt: createdAt}, cfg, model)
}

// NewStop creates a STOP order. A positive limit makes it a stop-limit order.
func NewStop(id, symbol string, side domain.Side, qty, stop, limit float64, createdAt int64, cfg Config, model *fillmodel.Model) (*Order, error) {
	p := Params{ID: id, Symbol: symbol, Kind: KindStop, Side: side, Quantity: qty, StopPrice: stop, CreatedAt: createdAt}
	if limit > 0 {
		p.LimitPrice = limit
		p.TriggerType = StopTriggerLimit
	}
	return New(p, cfg, model)
}

// Status returns the current status.
func (o *Order) Status() Status { return o.status }

// Age returns the number of bars the order has waited without completing.
func (o *Order) Age() int { return o.age }

// FilledQty returns the cumulative filled quantity.
func (o *Order) FilledQty() float64 { return o.filledQty }

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 { return o.Quantity - o.filledQty }

// Terminal reports whether the order is FILLED or CANCELLED.
func (o *Order) Terminal() bool {
	return o.status == StatusFilled || o.status == StatusCancelled
}

// AvgPrice returns the quantity-weighted average fill price, or 0 before any fill.
func (o *Order) AvgPrice() float64 {
	if o.filledQty == 0 {
		return 0
	}
	return o.filledNotional / o.filledQty
}

// Cancel cancels a live order, e.g. when its position is closed elsewhere.
// It returns the terminal result; cancelling a terminal order is a no-op.
func (o *Order) Cancel(ts int64, reason domain.NoTradeReason) Result {
	if o.Terminal() {
		return *o.final
	}
	o.status = StatusCancelled
	res := o.result(0)
	res.NoTrade = o.noTrade(ts, reason)
	o.final = &res
	return res
}

// TryFill attempts to fill the order against one bar and an optional book
// snapshot. Calls on a terminal order return the identical terminal result.
func (o *Order) TryFill(bar domain.Bar, book *domain.OrderBookSnapshot) Result {
	if o.Terminal() {
		return *o.final
	}

	remaining := o.Remaining()
	qty := remaining
	if book != nil {
		avail := book.VisibleQty(o.Side) * o.cfg.ParticipationRate
		if avail < qty {
			qty = avail
		}
	}

	ref, price, ok := o.quote(bar, book, qty)
	newQty := 0.0
	switch {
	case !ok:
		o.lastBlock = blockPrice
	case qty <= 0:
		o.lastBlock = blockDepth
	default:
		if qty >= remaining {
			qty = remaining
			o.lastBlock = blockNone
		} else {
			o.lastBlock = blockDepth
		}
		o.record(bar.Timestamp, qty, price, ref)
		if qty == remaining {
			o.filledQty = o.Quantity
		}
		newQty = qty
	}

	if o.filledQty >= o.Quantity {
		o.status = StatusFilled
		res := o.result(newQty)
		o.final = &res
		return res
	}

	if o.filledQty > 0 {
		o.status = StatusPartiallyFilled
	}
	o.age++
	if o.age >= o.cfg.MaxWaitBars {
		o.status = StatusCancelled
		res := o.result(newQty)
		res.NoTrade = o.noTrade(bar.Timestamp, o.cancelReason())
		o.final = &res
		return res
	}

	return o.result(newQty)
}

// quote returns the reference price and the fill price of this bar.
// ok is false when the order is not eligible to fill on the bar.
func (o *Order) quote(bar domain.Bar, book *domain.OrderBookSnapshot, qty float64) (ref, price float64, ok bool) {
	switch o.Kind {
	case KindMarket:
		ref = bar.Close
		if mid := book.MidPrice(); mid > 0 {
			ref = mid
		}
		if o.targetPrice == 0 {
			o.targetPrice = ref
		}
		return ref, o.marketPrice(ref, qty, bar, book), true

	case KindLimit:
		price, ok = limitFill(o.Side, o.LimitPrice, bar)
		return o.LimitPrice, price, ok

	case KindStop:
		trig, armed := o.trigger(bar)
		if !armed {
			return 0, 0, false
		}
		if o.TriggerType == StopTriggerLimit {
			price, ok = stopLimitFill(o.Side, trig, o.LimitPrice, bar)
			return o.StopPrice, price, ok
		}
		return o.StopPrice, o.marketPrice(trig, qty, bar, book), true
	}
	return 0, 0, false
}

// marketPrice moves base adversely by the model's slippage for qty.
func (o *Order) marketPrice(base, qty float64, bar domain.Bar, book *domain.OrderBookSnapshot) float64 {
	var est fillmodel.Estimate
	if book == nil {
		est = o.model.NoBookEstimate(o.Side, base)
	} else {
		est = o.model.FillProbability(o.Side, qty*book.MidPrice(), book, bar.RangeVolatility())
	}
	return base * (1 + o.Side.Sign()*est.ExpectedSlippagePct/100)
}

// trigger arms the stop when touched and returns the price the stop executes from.
func (o *Order) trigger(bar domain.Bar) (float64, bool) {
	if o.triggered {
		return bar.Open, true
	}
	switch o.Side {
	case domain.SideBuy:
		if bar.High >= o.StopPrice {
			o.triggered = true
			return math.Max(o.StopPrice, bar.Open), true
		}
	case domain.SideSell:
		if bar.Low <= o.StopPrice {
			o.triggered = true
			return math.Min(o.StopPrice, bar.Open), true
		}
	}
	return 0, false
}

// limitFill returns the fill price of a resting limit order on bar.
// A bar that opens through the limit fills at the open.
func limitFill(side domain.Side, limit float64, bar domain.Bar) (float64, bool) {
	if side == domain.SideBuy {
		if bar.Low > limit {
			return 0, false
		}
		return math.Min(limit, bar.Open), true
	}
	if bar.High < limit {
		return 0, false
	}
	return math.Max(limit, bar.Open), true
}

// stopLimitFill prices a triggered stop-limit: at the trigger price when it is
// within the limit, otherwise at the limit if the bar trades through it.
func stopLimitFill(side domain.Side, trig, limit float64, bar domain.Bar) (float64, bool) {
	if side == domain.SideBuy {
		if trig <= limit {
			return trig, true
		}
		if bar.Low <= limit {
			return limit, true
		}
		return 0, false
	}
	if trig >= limit {
		return trig, true
	}
	if bar.High >= limit {
		return limit, true
	}
	return 0, false
}

func (o *Order) record(ts int64, qty, price, ref float64) {
	o.fills = append(o.fills, Fill{Timestamp: ts, Qty: qty, Price: price, ReferencePrice: ref})
	o.filledQty += qty
	o.filledNotional += qty * price
	o.refNotional += qty * ref
}

func (o *Order) cancelReason() domain.NoTradeReason {
	switch {
	case o.lastBlock == blockDepth:
		return domain.NoTradeInsufficientDepth
	case o.lastBlock == blockPrice && (o.Kind == KindLimit || (o.Kind == KindStop && o.triggered)):
		return domain.NoTradePriceMoved
	default:
		return domain.NoTradeTimeout
	}
}

func (o *Order) noTrade(ts int64, reason domain.NoTradeReason) *domain.NoTradeEvent {
	return &domain.NoTradeEvent{
		OrderID:      o.ID,
		Symbol:       o.Symbol,
		Timestamp:    ts,
		Side:         o.Side,
		Kind:         string(o.Kind),
		TargetPrice:  o.targetPrice,
		RequestedQty: o.Quantity,
		FilledQty:    o.filledQty,
		FilledRatio:  o.filledQty / o.Quantity,
		Reason:       reason,
		AgeBars:      o.age,
	}
}

func (o *Order) result(newQty float64) Result {
	res := Result{
		OrderID:        o.ID,
		Status:         o.status,
		NewFillQty:     newQty,
		FilledQty:      o.filledQty,
		FilledNotional: o.filledNotional,
		PartialFills:   append([]Fill(nil), o.fills...),
	}
	if o.filledQty > 0 {
		res.AvgPrice = o.filledNotional / o.filledQty
		res.ReferencePrice = o.refNotional / o.filledQty
		if res.ReferencePrice > 0 {
			slip := o.Side.Sign() * (res.AvgPrice - res.ReferencePrice) / res.ReferencePrice
			res.SlippagePct = slip * 100
			res.SlippageBps = slip * 10000
		}
	}
	return res
}
