package marketdata

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/cache"
	"marketgate/internal/model"
	"marketgate/internal/model/enum"
	"marketgate/pkg/exception"
)

const (
	DefaultStaleAfter = 60 * time.Second
	staleMessage      = "Price data is stale"
)

// Reader serves the newest cached candle of a symbol to strategy code, judging its
// freshness at read time. It never writes to the cache.
type Reader struct {
	rdb        redis.Cmdable
	staleAfter time.Duration
	candleLag  time.Duration
	tickWindow int
	now        func() time.Time
}

type Option func(*Reader)

func WithStaleAfter(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithCandleLag sets the delay between a candle's open time and the moment it can be in
// the cache, usually the candle interval plus the ingest settle offset. Age is counted
// from that moment. Zero counts age from the open time.
func WithCandleLag(d time.Duration) Option {
	return func(r *Reader) {
		if d >= 0 {
			r.candleLag = d
		}
	}
}

func WithTickWindow(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.tickWindow = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reader) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReader(rdb redis.Cmdable, opts ...Option) (*Reader, error) {
	if rdb == nil {
		return nil, exception.ErrCacheNilClient
	}
	r := &Reader{
		rdb:        rdb,
		staleAfter: DefaultStaleAfter,
		tickWindow: cache.DefaultTickWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// LastCandle returns the newest cached candle of symbol unchanged, or the reason it
// cannot be used.
func (r *Reader) LastCandle(ctx context.Context, symbol string) model.CandleResult {
	if !model.ValidSymbol(symbol) {
		return model.Fail[model.Candle](enum.CodeInvalidSymbol)
	}

	c, res, ok := r.newest(ctx, symbol)
	if !ok {
		return res
	}

	if r.now().Sub(c.Timestamp.Add(r.candleLag)) > r.staleAfter {
		return model.FailWithMessage[model.Candle](enum.CodeStaleData, staleMessage)
	}
	return model.Ok(c)
}

// newest loads the newest candle of symbol. Entries the canonical decoder rejects, such
// as numeric epoch timestamps, are read leniently like the writer reads them.
func (r *Reader) newest(ctx context.Context, symbol string) (model.Candle, model.CandleResult, bool) {
	entry, err := cache.LoadEntry(ctx, r.rdb, symbol)
	if err != nil {
		if errors.Is(err, exception.ErrCacheEmptyEntry) {
			logs.Warnf("marketdata: no candle for %s", symbol)
			return model.Candle{}, model.Fail[model.Candle](enum.CodeNoData), false
		}
		if errors.Is(err, exception.ErrMalformedRecord) {
			candles, lerr := cache.LoadLenient(ctx, r.rdb, symbol)
			if lerr == nil {
				return candles[len(candles)-1], model.CandleResult{}, true
			}
			err = lerr
		}
		logs.Errorf("marketdata: read %s, err: %+v", symbol, err)
		return model.Candle{}, model.FailWithMessage[model.Candle](enum.CodeNoData, err.Error()), false
	}

	newest, _ := entry.Newest()
	c, err := newest.Candle()
	if err != nil {
		logs.Errorf("marketdata: normalize timestamp %q of %s, err: %+v", newest.Timestamp, symbol, err)
		return model.Candle{}, model.Fail[model.Candle](enum.CodeInvalidTimestamp), false
	}
	return c, model.CandleResult{}, true
}

// LastPrices returns the live tick window of symbol, newest first.
func (r *Reader) LastPrices(ctx context.Context, symbol string) model.Result[[]string] {
	if !model.ValidSymbol(symbol) {
		return model.Fail[[]string](enum.CodeInvalidSymbol)
	}

	prices, err := cache.LoadPrices(ctx, r.rdb, symbol, r.tickWindow)
	if err != nil {
		logs.Errorf("marketdata: read prices of %s, err: %+v", symbol, err)
		return model.FailWithMessage[[]string](enum.CodeNoData, err.Error())
	}
	if len(prices) == 0 {
		return model.Fail[[]string](enum.CodeNoData)
	}
	return model.Ok(prices)
}
