package binance

import (
	"encoding/json"
	"time"

	"github.com/yanun0323/errors"

	"marketgate/internal/candle"
	"marketgate/pkg/exception"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// kline is [openTime, open, high, low, close, volume, closeTime, ...] with prices as strings.
type kline []json.RawMessage

func (k kline) raw(symbol string) (candle.RawCandle, error) {
	if len(k) < 6 {
		return candle.RawCandle{}, errors.Wrapf(exception.ErrMalformedRecord, "kline of %s has %d fields", symbol, len(k))
	}

	var openTime int64
	if err := json.Unmarshal(k[0], &openTime); err != nil {
		return candle.RawCandle{}, errors.Wrapf(err, "kline open time of %s", symbol)
	}

	return candle.RawCandle{
		Symbol: symbol,
		Open:   field(k[1]),
		High:   field(k[2]),
		Low:    field(k[3]),
		Close:  field(k[4]),
		Volume: field(k[5]),
		Time:   time.UnixMilli(openTime).UTC(),
	}, nil
}

// field returns the decoded value or nil; coercion happens in the normalizer.
func field(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}
