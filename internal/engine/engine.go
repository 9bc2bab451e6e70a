package engine

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"marketgate/internal/model"
	"marketgate/internal/model/enum"
	"marketgate/internal/trade"
)

// Engine reply codes, in addition to the shared validation codes.
const (
	CodeInvalidCommand   enum.ErrorCode = "INVALID_COMMAND"
	CodeIdentityMismatch enum.ErrorCode = "IDENTITY_MISMATCH"
	CodeRiskRejected     enum.ErrorCode = "RISK_REJECTED"
	CodeNoReferencePrice enum.ErrorCode = "NO_REFERENCE_PRICE"
)

// PriceSource supplies reference prices for market orders and price bands.
type PriceSource interface {
	LastCandle(ctx context.Context, symbol string) model.CandleResult
}

// Fill is the data of an ok reply.
type Fill struct {
	OrderID    string      `json:"order_id"`
	StrategyID string      `json:"strategy_id"`
	Symbol     string      `json:"symbol"`
	Action     enum.Action `json:"action"`
	Quantity   int64       `json:"quantity"`
	Price      float64     `json:"price"`
	Position   int64       `json:"position"`
	FilledAt   time.Time   `json:"filled_at"`
}

// Engine is a paper execution engine: every accepted command fills immediately at its
// limit price or the reference price.
type Engine struct {
	risk      *Risk
	positions *Positions
	prices    PriceSource
	now       func() time.Time
	orderSeq  atomic.Uint64
}

type Option func(*Engine)

func WithPriceSource(p PriceSource) Option {
	return func(e *Engine) { e.prices = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(cfg RiskConfig, opts ...Option) *Engine {
	e := &Engine{
		risk:      NewRisk(cfg),
		positions: NewPositions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Positions exposes the position book.
func (e *Engine) Positions() *Positions {
	return e.positions
}

// Handle processes one command sent by identity and returns the encoded reply.
func (e *Engine) Handle(ctx context.Context, identity string, payload []byte) []byte {
	res := e.execute(ctx, identity, payload)
	reply, err := trade.EncodeReply(res)
	if err != nil {
		logs.Errorf("engine: encode reply for %s, err: %+v", identity, err)
		return []byte(`{"status":"error","code":"INTERNAL","message":null}`)
	}
	return reply
}

func (e *Engine) execute(ctx context.Context, identity string, payload []byte) model.TradeResult {
	cmd, err := trade.DecodeCommand(payload)
	if err != nil {
		return model.FailWithMessage[json.RawMessage](CodeInvalidCommand, err.Error())
	}
	if identity != "" && cmd.StrategyID != identity {
		return model.FailWithMessage[json.RawMessage](CodeIdentityMismatch, "strategy_id does not match the sender identity")
	}

	switch {
	case !model.ValidSymbol(cmd.Symbol):
		return model.Fail[json.RawMessage](enum.CodeInvalidSymbol)
	case cmd.Quantity <= 0:
		return model.Fail[json.RawMessage](enum.CodeInvalidQuantity)
	case cmd.Price != nil && *cmd.Price <= 0:
		return model.Fail[json.RawMessage](enum.CodeInvalidPrice)
	case !cmd.Action.IsAvailable():
		return model.Fail[json.RawMessage](enum.CodeInvalidAction)
	}

	ref := e.referencePrice(ctx, cmd.Symbol)
	price := ref
	if cmd.Price != nil {
		price = *cmd.Price
	}
	if price <= 0 {
		return model.FailWithMessage[json.RawMessage](CodeNoReferencePrice, "market order without a fresh candle")
	}

	key := PositionKey{StrategyID: cmd.StrategyID, Symbol: cmd.Symbol}
	now := e.now()
	decision := e.risk.Evaluate(cmd, price, StateView{
		Position:       e.positions.Position(key),
		ReferencePrice: ref,
		Now:            now,
	})
	if !decision.Allow {
		logs.Warnf("engine: reject %s %s x%d for %s, reason: %s", cmd.Action, cmd.Symbol, cmd.Quantity, cmd.StrategyID, decision.Reason)
		return model.FailWithMessage[json.RawMessage](CodeRiskRejected, string(decision.Reason))
	}

	fill := Fill{
		OrderID:    "paper-" + strconv.FormatUint(e.orderSeq.Add(1), 10),
		StrategyID: cmd.StrategyID,
		Symbol:     cmd.Symbol,
		Action:     cmd.Action,
		Quantity:   cmd.Quantity,
		Price:      price,
		Position:   e.positions.ApplyFill(key, cmd.Action, cmd.Quantity),
		FilledAt:   now.UTC(),
	}
	data, err := sonic.Marshal(fill)
	if err != nil {
		return model.FailWithMessage[json.RawMessage](CodeInvalidCommand, err.Error())
	}
	logs.Infof("engine: fill %s %s x%d @ %g for %s, position: %d", fill.Action, fill.Symbol, fill.Quantity, fill.Price, fill.StrategyID, fill.Position)
	return model.Ok(json.RawMessage(data))
}

func (e *Engine) referencePrice(ctx context.Context, symbol string) float64 {
	if e.prices == nil {
		return 0
	}
	res := e.prices.LastCandle(ctx, symbol)
	if !res.IsOK() || res.Data.Close == nil {
		return 0
	}
	return *res.Data.Close
}
