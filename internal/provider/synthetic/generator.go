package synthetic

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"marketgate/internal/candle"
	"marketgate/internal/provider"
	"marketgate/pkg/exception"
)

// Generator creates synthetic candles for local runs without a market data account.
// Each symbol walks from its own base price; the same (symbol, open time) always yields
// the same candle.
type Generator struct {
	basePrice float64
	baseSize  int64
	spread    float64

	mu   sync.Mutex
	last map[string]float64
}

// NewGenerator creates a generator around basePrice.
func NewGenerator(basePrice float64, baseSize int64, spread float64) *Generator {
	if basePrice <= 0 {
		basePrice = 100
	}
	if baseSize <= 0 {
		baseSize = 1
	}
	if spread < 0 {
		spread = 0
	}
	return &Generator{
		basePrice: basePrice,
		baseSize:  baseSize,
		spread:    spread,
		last:      make(map[string]float64),
	}
}

func (g *Generator) Name() string {
	return "synthetic"
}

func (g *Generator) Latest(ctx context.Context, req provider.Request) (provider.Batch, error) {
	if len(req.Symbols) == 0 {
		return provider.Batch{}, exception.ErrEmptySymbolList
	}
	if err := ctx.Err(); err != nil {
		return provider.Batch{}, err
	}

	batch := provider.NewBatch(len(req.Symbols))
	for _, symbol := range req.Symbols {
		batch.Candles[symbol] = g.Next(symbol, req.End)
	}
	return batch, nil
}

// Next creates the candle of symbol opening at ts.
func (g *Generator) Next(symbol string, ts time.Time) candle.RawCandle {
	ts = candle.TruncateUTC(ts)
	seed := hash(symbol)
	step := (float64((seed^uint64(ts.Unix()/60))%21) - 10) / 100

	g.mu.Lock()
	open, ok := g.last[symbol]
	if !ok {
		open = g.basePrice + float64(seed%1000)/10
	}
	closePrice := open + step
	if closePrice <= 0 {
		closePrice = open
	}
	g.last[symbol] = closePrice
	g.mu.Unlock()

	high := max(open, closePrice) + g.spread
	low := min(open, closePrice) - g.spread
	return candle.RawCandle{
		Symbol: symbol,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: g.baseSize * int64(1+seed%7),
		Time:   ts,
	}
}

func hash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
