package trade

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/yanun0323/logs"

	"marketgate/internal/model"
	"marketgate/internal/model/enum"
	"marketgate/internal/obs"
	"marketgate/pkg/exception"
)

const DefaultTimeout = 2000 * time.Millisecond

// Gateway turns a strategy's trade intent into a command for the execution engine and
// maps the round trip into a TradeResult. Every call is independent and never retried.
type Gateway struct {
	identity  string
	transport Transport
	timeout   time.Duration
	now       func() time.Time
	metrics   *obs.Metrics
}

type Option func(*Gateway)

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway binds a strategy identity to a transport.
func NewGateway(identity string, transport Transport, opts ...Option) (*Gateway, error) {
	if identity == "" {
		return nil, exception.ErrTradeEmptyIdentity
	}
	if transport == nil {
		return nil, exception.ErrTradeNilTransport
	}
	g := &Gateway{
		identity:  identity,
		transport: transport,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Identity returns the strategy id commands are sent under.
func (g *Gateway) Identity() string {
	return g.identity
}

func (g *Gateway) Buy(ctx context.Context, symbol string, quantity int64, price *float64) model.TradeResult {
	return g.Send(ctx, enum.ActionBuy, symbol, quantity, price)
}

func (g *Gateway) Sell(ctx context.Context, symbol string, quantity int64, price *float64) model.TradeResult {
	return g.Send(ctx, enum.ActionSell, symbol, quantity, price)
}

// Send validates the intent, dispatches it and waits up to the reply timeout. A nil
// price is a market order. Cancelling ctx does not abort a call in flight.
func (g *Gateway) Send(ctx context.Context, action enum.Action, symbol string, quantity int64, price *float64) model.TradeResult {
	if code, ok := validate(action, symbol, quantity, price); !ok {
		g.metrics.ObserveTrade(string(code), 0)
		return model.Fail[json.RawMessage](code)
	}

	cmd := model.TradeCommand{
		StrategyID: g.identity,
		Symbol:     symbol,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		Ts:         model.EpochSeconds(g.now()),
	}

	start := time.Now()
	res := g.roundTrip(ctx, cmd)
	outcome := string(res.Status)
	if !res.IsOK() {
		outcome = string(res.Code)
	}
	g.metrics.ObserveTrade(outcome, time.Since(start))
	return res
}

func (g *Gateway) roundTrip(ctx context.Context, cmd model.TradeCommand) model.TradeResult {
	payload, err := EncodeCommand(cmd)
	if err != nil {
		return model.FailWithMessage[json.RawMessage](enum.CodeIPCError, err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	reply, err := g.transport.RoundTrip(ctx, payload)
	if err != nil {
		if isUnavailable(err) {
			logs.Errorf("gateway: %s %s for %s, engine unavailable, err: %+v", cmd.Action, cmd.Symbol, g.identity, err)
			return model.Fail[json.RawMessage](enum.CodeEngineUnavailable)
		}
		logs.Errorf("gateway: %s %s for %s, ipc failure, err: %+v", cmd.Action, cmd.Symbol, g.identity, err)
		return model.FailWithMessage[json.RawMessage](enum.CodeIPCError, err.Error())
	}

	res, err := DecodeReply(reply)
	if err != nil {
		logs.Errorf("gateway: %s %s for %s, invalid reply %q, err: %+v", cmd.Action, cmd.Symbol, g.identity, reply, err)
		return model.Fail[json.RawMessage](enum.CodeInvalidResponse)
	}
	return res
}

// Close releases the transport.
func (g *Gateway) Close() error {
	return g.transport.Close()
}

func validate(action enum.Action, symbol string, quantity int64, price *float64) (enum.ErrorCode, bool) {
	if !model.ValidSymbol(symbol) {
		return enum.CodeInvalidSymbol, false
	}
	if quantity <= 0 {
		return enum.CodeInvalidQuantity, false
	}
	if price != nil && (math.IsNaN(*price) || math.IsInf(*price, 0) || *price <= 0) {
		return enum.CodeInvalidPrice, false
	}
	if !action.IsAvailable() {
		return enum.CodeInvalidAction, false
	}
	return "", true
}

func isUnavailable(err error) bool {
	return errors.Is(err, exception.ErrTradeTimeout) ||
		errors.Is(err, exception.ErrTradeUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
