package engine

import (
	"math"
	"sync"
	"time"

	"marketgate/internal/model"
	"marketgate/internal/model/enum"
)

// RiskReason names why a command was denied.
type RiskReason string

const (
	RiskReasonNone          RiskReason = ""
	RiskReasonKillSwitch    RiskReason = "kill switch engaged"
	RiskReasonRateLimit     RiskReason = "order rate limit exceeded"
	RiskReasonMaxQty        RiskReason = "max order quantity exceeded"
	RiskReasonPriceBand     RiskReason = "price outside allowed band"
	RiskReasonMaxNotional   RiskReason = "max order notional exceeded"
	RiskReasonPositionLimit RiskReason = "position limit exceeded"
)

// RiskConfig defines simple risk limits. Zero disables a limit.
type RiskConfig struct {
	KillSwitch           bool          `json:"killSwitch" mapstructure:"kill_switch"`
	MaxOrderQty          int64         `json:"maxOrderQty" mapstructure:"max_order_qty"`
	MaxOrderNotional     float64       `json:"maxOrderNotional" mapstructure:"max_order_notional"`
	MaxPosition          int64         `json:"maxPosition" mapstructure:"max_position"`
	OrderRateLimit       int           `json:"orderRateLimit" mapstructure:"order_rate_limit"`
	OrderRateWindow      time.Duration `json:"orderRateWindow" mapstructure:"order_rate_window"`
	MaxPriceDeviationBps int64         `json:"maxPriceDeviationBps" mapstructure:"max_price_deviation_bps"`
}

// StateView is what the risk checks know about the strategy and market.
type StateView struct {
	Position       int64
	ReferencePrice float64
	Now            time.Time
}

// Decision is the outcome of a risk evaluation.
type Decision struct {
	Allow  bool
	Reason RiskReason
}

type rateWindow struct {
	start time.Time
	count int
}

// Risk evaluates commands against static limits. Rate limits are tracked per strategy.
type Risk struct {
	cfg RiskConfig

	mu    sync.Mutex
	rates map[string]*rateWindow
}

func NewRisk(cfg RiskConfig) *Risk {
	return &Risk{cfg: cfg, rates: make(map[string]*rateWindow)}
}

// Evaluate applies the checks in order and stops at the first denial.
func (r *Risk) Evaluate(cmd model.TradeCommand, price float64, state StateView) Decision {
	now := state.Now
	if now.IsZero() {
		now = time.Now()
	}

	if r.cfg.KillSwitch {
		return deny(RiskReasonKillSwitch)
	}

	if r.cfg.OrderRateLimit > 0 && r.cfg.OrderRateWindow > 0 && !r.allowRate(cmd.StrategyID, now) {
		return deny(RiskReasonRateLimit)
	}

	if r.cfg.MaxOrderQty > 0 && cmd.Quantity > r.cfg.MaxOrderQty {
		return deny(RiskReasonMaxQty)
	}

	if r.cfg.MaxPriceDeviationBps > 0 && cmd.Price != nil && state.ReferencePrice > 0 {
		diff := math.Abs(*cmd.Price - state.ReferencePrice)
		if diff*10000 > state.ReferencePrice*float64(r.cfg.MaxPriceDeviationBps) {
			return deny(RiskReasonPriceBand)
		}
	}

	if r.cfg.MaxOrderNotional > 0 && price*float64(cmd.Quantity) > r.cfg.MaxOrderNotional {
		return deny(RiskReasonMaxNotional)
	}

	next := applySide(state.Position, cmd.Action, cmd.Quantity)
	if r.cfg.MaxPosition > 0 && absInt64(next) > r.cfg.MaxPosition {
		return deny(RiskReasonPositionLimit)
	}

	return Decision{Allow: true}
}

func (r *Risk) allowRate(strategyID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.rates[strategyID]
	if !ok {
		w = &rateWindow{}
		r.rates[strategyID] = w
	}
	if w.start.IsZero() || now.Sub(w.start) >= r.cfg.OrderRateWindow {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= r.cfg.OrderRateLimit
}

func deny(reason RiskReason) Decision {
	return Decision{Reason: reason}
}

func applySide(pos int64, action enum.Action, qty int64) int64 {
	switch action {
	case enum.ActionBuy:
		return pos + qty
	case enum.ActionSell:
		return pos - qty
	default:
		return pos
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
