package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"marketgate/pkg/exception"
)

// TickWindow keeps the newest raw prices per symbol under prices:{symbol},
// newest first, without deduplication.
type TickWindow struct {
	rdb  redis.UniversalClient
	size int
}

func NewTickWindow(rdb redis.UniversalClient, size int) (*TickWindow, error) {
	if rdb == nil {
		return nil, exception.ErrCacheNilClient
	}
	if size <= 0 {
		return nil, exception.ErrCacheBadWindow
	}
	return &TickWindow{rdb: rdb, size: size}, nil
}

// Push prepends price to the window of symbol and trims it.
func (w *TickWindow) Push(ctx context.Context, symbol, price string) error {
	if w == nil || w.rdb == nil {
		return exception.ErrCacheNilClient
	}
	key := PriceKey(symbol)
	_, err := w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, price)
		pipe.LTrim(ctx, key, 0, int64(w.size-1))
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "push tick to %s", key)
	}
	return nil
}

// Prices returns the window of symbol, newest first.
func (w *TickWindow) Prices(ctx context.Context, symbol string) ([]string, error) {
	if w == nil || w.rdb == nil {
		return nil, exception.ErrCacheNilClient
	}
	return LoadPrices(ctx, w.rdb, symbol, w.size)
}

// Close releases the cache handle.
func (w *TickWindow) Close() error {
	if w == nil || w.rdb == nil {
		return nil
	}
	return w.rdb.Close()
}

// LoadPrices reads up to size prices of symbol, newest first.
func LoadPrices(ctx context.Context, rdb redis.Cmdable, symbol string, size int) ([]string, error) {
	if size <= 0 {
		size = DefaultTickWindow
	}
	prices, err := rdb.LRange(ctx, PriceKey(symbol), 0, int64(size-1)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", PriceKey(symbol))
	}
	return prices, nil
}
