package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketgate/internal/candle"
)

func TestClosedBoundary(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 30, 42, 0, time.FixedZone("x", 3600))
	got := ClosedBoundary(now, time.Minute)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 29, 0, 0, time.UTC), got)

	got = ClosedBoundary(now, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 3, 1, 13, 25, 0, 0, time.UTC), got)
}

func TestFanOut(t *testing.T) {
	errBoom := errors.New("boom")
	batch := FanOut(context.Background(), []string{"A", "B", "C"}, 2, func(_ context.Context, symbol string) (candle.RawCandle, bool, error) {
		switch symbol {
		case "A":
			return candle.RawCandle{Symbol: "A", Close: 1.0}, true, nil
		case "B":
			return candle.RawCandle{}, false, errBoom
		default:
			return candle.RawCandle{}, false, nil
		}
	})

	assert.Len(t, batch.Candles, 1)
	assert.Equal(t, "A", batch.Candles["A"].Symbol)
	assert.ErrorIs(t, batch.Errors["B"], errBoom)
	_, ok := batch.Candles["C"]
	assert.False(t, ok)
	_, ok = batch.Errors["C"]
	assert.False(t, ok)
}

func TestFanOutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	batch := FanOut(ctx, []string{"A", "B"}, 1, func(context.Context, string) (candle.RawCandle, bool, error) {
		calls++
		return candle.RawCandle{}, true, nil
	})
	assert.LessOrEqual(t, calls, 2)
	assert.Equal(t, 2, len(batch.Candles)+len(batch.Errors))
}

func TestBatchFailed(t *testing.T) {
	errBoom := errors.New("boom")
	b := NewBatch(2)
	b.Errors["A"] = errBoom
	assert.NoError(t, b.Failed([]string{"A", "B"}), "B had no data, not an error")

	b.Errors["B"] = errBoom
	assert.Error(t, b.Failed([]string{"A", "B"}))

	b.Candles["C"] = candle.RawCandle{Symbol: "C"}
	assert.NoError(t, b.Failed([]string{"A", "B", "C"}))
}
