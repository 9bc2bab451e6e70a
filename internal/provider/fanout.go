package provider

import (
	"context"
	"sync"

	"marketgate/internal/candle"
)

// FetchFunc fetches one symbol. ok is false when the symbol had no candle in range.
type FetchFunc func(ctx context.Context, symbol string) (raw candle.RawCandle, ok bool, err error)

// FanOut runs fetch for every symbol with at most parallel requests in flight.
func FanOut(ctx context.Context, symbols []string, parallel int, fetch FetchFunc) Batch {
	if parallel <= 0 {
		parallel = 1
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, parallel)
		batch = NewBatch(len(symbols))
	)

	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			mu.Lock()
			batch.Errors[symbol] = ctx.Err()
			mu.Unlock()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			raw, ok, err := fetch(ctx, symbol)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				batch.Errors[symbol] = err
			case ok:
				batch.Candles[symbol] = raw
			}
		}(symbol)
	}

	wg.Wait()
	return batch
}
