package provider

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"marketgate/internal/candle"
	"marketgate/pkg/exception"
)

// Request asks for the latest closed candle of every symbol whose open time is at or
// before End.
type Request struct {
	Symbols  []string
	Interval time.Duration
	End      time.Time
}

// Batch is the outcome of one fetch. A symbol appears in at most one of the maps;
// symbols in neither had no candle in range.
type Batch struct {
	Candles map[string]candle.RawCandle
	Errors  map[string]error
}

func NewBatch(size int) Batch {
	return Batch{
		Candles: make(map[string]candle.RawCandle, size),
		Errors:  make(map[string]error),
	}
}

// Failed returns an error when every requested symbol failed.
func (b Batch) Failed(symbols []string) error {
	if len(symbols) == 0 || len(b.Candles) > 0 {
		return nil
	}
	for _, symbol := range symbols {
		if b.Errors[symbol] == nil {
			return nil
		}
	}
	return errors.Wrapf(exception.ErrProviderRequest, "all %d symbols failed, first: %v", len(symbols), b.Errors[symbols[0]])
}

// Provider fetches candles from an external market data source. A returned error
// means the whole batch failed.
type Provider interface {
	Name() string
	Latest(ctx context.Context, req Request) (Batch, error)
}

// ClosedBoundary returns the newest open time whose candle has closed by now.
func ClosedBoundary(now time.Time, interval time.Duration) time.Time {
	return now.UTC().Truncate(time.Minute).Add(-interval)
}
