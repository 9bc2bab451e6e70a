package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

var baseTime = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func minuteCandle(i int, close float64) model.Candle {
	return model.Candle{
		Symbol:    "AAPL",
		Open:      model.Float(close - 1),
		High:      model.Float(close + 1),
		Low:       model.Float(close - 2),
		Close:     model.Float(close),
		Volume:    model.Int(int64(1000 + i)),
		Timestamp: baseTime.Add(time.Duration(i) * time.Minute),
	}
}

func TestRollingWriterBound(t *testing.T) {
	_, rdb := newTestClient(t)
	w, err := NewRollingWriter(rdb, DefaultCandleWindow)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		_, err := w.Apply(t.Context(), "AAPL", minuteCandle(i, float64(100+i)))
		require.NoError(t, err)
	}

	entry, err := w.Window(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Len(t, entry, DefaultCandleWindow)
	for i, rec := range entry {
		c, err := rec.Candle()
		require.NoError(t, err)
		assert.True(t, baseTime.Add(time.Duration(i+3)*time.Minute).Equal(c.Timestamp))
	}
}

func TestRollingWriterReplaceInPlace(t *testing.T) {
	_, rdb := newTestClient(t)
	w, err := NewRollingWriter(rdb, DefaultCandleWindow)
	require.NoError(t, err)

	_, err = w.Apply(t.Context(), "AAPL", minuteCandle(0, 100))
	require.NoError(t, err)
	_, err = w.Apply(t.Context(), "AAPL", minuteCandle(1, 101))
	require.NoError(t, err)
	window, err := w.Apply(t.Context(), "AAPL", minuteCandle(1, 555))
	require.NoError(t, err)

	require.Len(t, window, 2)
	assert.Equal(t, 555.0, *window[1].Close)

	entry, err := w.Window(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Len(t, entry, 2)
	assert.Equal(t, 555.0, *entry[1].Close)
}

func TestRollingWriterOutOfOrderInsert(t *testing.T) {
	_, rdb := newTestClient(t)
	w, err := NewRollingWriter(rdb, 3)
	require.NoError(t, err)

	for _, i := range []int{4, 1, 3, 0, 2} {
		_, err := w.Apply(t.Context(), "AAPL", minuteCandle(i, float64(i)))
		require.NoError(t, err)
	}

	entry, err := w.Window(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Len(t, entry, 3)
	assert.Equal(t, 2.0, *entry[0].Close)
	assert.Equal(t, 4.0, *entry[2].Close)
}

func TestRollingWriterLegacyEntries(t *testing.T) {
	testCases := []struct {
		desc   string
		legacy string
		want   int
	}{
		{
			desc:   "single object",
			legacy: `{"symbol":"AAPL","open":"1.5","high":2,"low":1,"close":"abc","volume":10,"timestamp":"2024-03-01 14:00:00+00:00"}`,
			want:   2,
		},
		{
			desc:   "array of encoded strings with a malformed element",
			legacy: `["{\"open\":1,\"close\":2,\"timestamp\":\"2024-03-01T14:00:00\"}", "not json", "{\"close\":3}"]`,
			want:   2,
		},
		{
			desc:   "array of objects with epoch millis",
			legacy: `[{"close":1,"timestamp":1709301600000},{"close":2,"timestamp":"2024-03-01T14:01:00Z"}]`,
			want:   3,
		},
		{
			desc:   "garbage",
			legacy: `%%%`,
			want:   1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			mr, rdb := newTestClient(t)
			require.NoError(t, mr.Set(CandleKey("AAPL"), tc.legacy))

			w, err := NewRollingWriter(rdb, DefaultCandleWindow)
			require.NoError(t, err)

			window, err := w.Apply(t.Context(), "AAPL", minuteCandle(0, 100))
			require.NoError(t, err)
			assert.Len(t, window, tc.want)

			entry, err := w.Window(t.Context(), "AAPL")
			require.NoError(t, err, "entry must be canonical after a write")
			assert.Len(t, entry, tc.want)
		})
	}
}

func TestLegacyNullOnFailure(t *testing.T) {
	got := decodeLenient("AAPL", `{"open":"1.5","close":"abc","timestamp":"2024-03-01 14:00:30"}`)
	require.Len(t, got, 1)
	assert.Equal(t, 1.5, *got[0].Open)
	assert.Nil(t, got[0].Close)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC).Equal(got[0].Timestamp))
}

func TestRollingWriterConcurrentWriters(t *testing.T) {
	mr, _ := newTestClient(t)

	const writers = 6
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()
			w, err := NewRollingWriter(rdb, DefaultCandleWindow)
			if err != nil {
				errs <- err
				return
			}
			_, err = w.Apply(t.Context(), "AAPL", minuteCandle(i, float64(i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	entry, err := LoadEntry(t.Context(), rdb, "AAPL")
	require.NoError(t, err)
	require.Len(t, entry, DefaultCandleWindow)
	first, err := entry[0].Candle()
	require.NoError(t, err)
	assert.True(t, baseTime.Add(time.Minute).Equal(first.Timestamp))
}

func TestLoadEntryMissing(t *testing.T) {
	_, rdb := newTestClient(t)
	_, err := LoadEntry(t.Context(), rdb, "NOPE")
	assert.ErrorIs(t, err, exception.ErrCacheEmptyEntry)
}

func TestLoadEntryMalformed(t *testing.T) {
	mr, rdb := newTestClient(t)
	require.NoError(t, mr.Set(CandleKey("AAPL"), "{broken"))
	_, err := LoadEntry(t.Context(), rdb, "AAPL")
	assert.True(t, errors.Is(err, exception.ErrMalformedRecord), "%v", err)
}

func TestTickWindow(t *testing.T) {
	mr, rdb := newTestClient(t)
	w, err := NewTickWindow(rdb, DefaultTickWindow)
	require.NoError(t, err)

	prices := []string{"1.0", "1.1", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6", "1.7", "1.8", "1.9", "2.0"}
	for _, p := range prices {
		require.NoError(t, w.Push(t.Context(), "BTCUSDT", p))
	}

	got, err := w.Prices(t.Context(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, DefaultTickWindow)
	assert.Equal(t, "2.0", got[0])
	assert.Equal(t, "1.1", got[9], "no deduplication of repeated prices")

	list, err := mr.List(PriceKey("BTCUSDT"))
	require.NoError(t, err)
	assert.Len(t, list, DefaultTickWindow)
}

func TestConstructorsRejectBadInput(t *testing.T) {
	_, rdb := newTestClient(t)

	_, err := NewRollingWriter(nil, 5)
	assert.ErrorIs(t, err, exception.ErrCacheNilClient)
	_, err = NewRollingWriter(rdb, 0)
	assert.ErrorIs(t, err, exception.ErrCacheBadWindow)
	_, err = NewTickWindow(rdb, -1)
	assert.ErrorIs(t, err, exception.ErrCacheBadWindow)
}

func TestMerge(t *testing.T) {
	window := []model.Candle{minuteCandle(0, 0), minuteCandle(1, 1)}
	out := Merge(window, minuteCandle(0, 9), 5)
	require.Len(t, out, 2)
	assert.Equal(t, 9.0, *out[0].Close)
	assert.Equal(t, 1.0, *out[1].Close)
	assert.Len(t, window, 2, "input window is not mutated")
	assert.Equal(t, 0.0, *window[0].Close)
}
