package live

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"marketgate/pkg/exception"
)

// Tick is one live trade price.
type Tick struct {
	Symbol string
	Price  string
	At     time.Time
}

// Codec encodes subscriptions and decodes feed messages for one venue.
type Codec interface {
	Subscribe(symbols []string, id uint64) ([]byte, error)
	// Decode returns ok=false for messages that carry no tick, such as
	// subscription acknowledgements.
	Decode(msg []byte) (tick Tick, ok bool, err error)
}

// BinanceCodec speaks the Binance spot trade stream, raw or combined.
type BinanceCodec struct{}

type binanceSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

type binanceEnvelope struct {
	Stream string      `json:"stream"`
	Data   *binanceMsg `json:"data"`

	binanceMsg
}

type binanceMsg struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`

	Result any    `json:"result"`
	ID     uint64 `json:"id"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (BinanceCodec) Subscribe(symbols []string, id uint64) ([]byte, error) {
	if len(symbols) == 0 {
		return nil, exception.ErrFeedEmptySymbols
	}
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(s)+"@trade")
	}
	return sonic.Marshal(binanceSubscribe{Method: "SUBSCRIBE", Params: params, ID: id})
}

func (BinanceCodec) Decode(msg []byte) (Tick, bool, error) {
	var env binanceEnvelope
	if err := sonic.Unmarshal(msg, &env); err != nil {
		return Tick{}, false, errors.Wrap(err, "decode feed message")
	}

	m := env.binanceMsg
	if env.Data != nil {
		m = *env.Data
	}
	if m.Code != 0 {
		return Tick{}, false, errors.Wrapf(exception.ErrFeedProtocol, "code: %d, msg: %s", m.Code, m.Msg)
	}
	if m.Event != "trade" || m.Symbol == "" || m.Price == "" {
		return Tick{}, false, nil
	}

	ts := m.TradeTime
	if ts == 0 {
		ts = m.EventTime
	}
	return Tick{
		Symbol: m.Symbol,
		Price:  m.Price,
		At:     time.UnixMilli(ts).UTC(),
	}, true, nil
}
