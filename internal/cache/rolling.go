package cache

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"

	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

const defaultWatchRetries = 8

// RollingWriter maintains the newest candles per symbol under candles:{symbol}.
type RollingWriter struct {
	rdb     redis.UniversalClient
	size    int
	retries int
}

func NewRollingWriter(rdb redis.UniversalClient, size int) (*RollingWriter, error) {
	if rdb == nil {
		return nil, exception.ErrCacheNilClient
	}
	if size <= 0 {
		return nil, exception.ErrCacheBadWindow
	}
	return &RollingWriter{rdb: rdb, size: size, retries: defaultWatchRetries}, nil
}

// Apply merges c into the window of symbol and writes it back atomically. A
// concurrent writer on the same key causes a retry. It returns the window written.
func (w *RollingWriter) Apply(ctx context.Context, symbol string, c model.Candle) ([]model.Candle, error) {
	if w == nil || w.rdb == nil {
		return nil, exception.ErrCacheNilClient
	}

	key := CandleKey(symbol)
	var window []model.Candle
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		window = Merge(decodeLenient(symbol, raw), c, w.size)
		payload, err := EncodeEntry(window)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < w.retries; i++ {
		err := w.rdb.Watch(ctx, txf, key)
		if err == nil {
			return window, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, errors.Wrapf(err, "apply candle to %s", key)
	}
	return nil, errors.Wrapf(exception.ErrCacheConflict, "%s", key)
}

// Window returns the cached candles of symbol, oldest first.
func (w *RollingWriter) Window(ctx context.Context, symbol string) (Entry, error) {
	if w == nil || w.rdb == nil {
		return nil, exception.ErrCacheNilClient
	}
	return LoadEntry(ctx, w.rdb, symbol)
}

// LoadEntry reads the canonical entry of symbol. A missing key returns
// exception.ErrCacheEmptyEntry.
func LoadEntry(ctx context.Context, rdb redis.Cmdable, symbol string) (Entry, error) {
	raw, err := rdb.Get(ctx, CandleKey(symbol)).Result()
	if err == redis.Nil {
		return nil, exception.ErrCacheEmptyEntry
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", CandleKey(symbol))
	}
	e, err := DecodeEntry(raw)
	if err != nil {
		return nil, err
	}
	if len(e) == 0 {
		return nil, exception.ErrCacheEmptyEntry
	}
	return e, nil
}

// LoadLenient reads the entry of symbol the way the writer does, accepting numeric
// epoch timestamps and legacy encodings. Elements that cannot be normalized are
// skipped. The candles are ordered by timestamp, oldest first.
func LoadLenient(ctx context.Context, rdb redis.Cmdable, symbol string) ([]model.Candle, error) {
	raw, err := rdb.Get(ctx, CandleKey(symbol)).Result()
	if err == redis.Nil {
		return nil, exception.ErrCacheEmptyEntry
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", CandleKey(symbol))
	}

	candles := decodeLenient(symbol, raw)
	if len(candles) == 0 {
		return nil, errors.Wrapf(exception.ErrMalformedRecord, "no readable candle in %s", CandleKey(symbol))
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}
