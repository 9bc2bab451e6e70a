package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketgate/internal/cache"
	"marketgate/internal/marketdata"
	"marketgate/internal/model"
	"marketgate/internal/obs"
)

var now = time.Date(2024, 3, 1, 14, 31, 0, 0, time.UTC)

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Range(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	args := m.Called(ctx, symbol, from, to)
	return args.Get(0).([]model.Candle), args.Error(1)
}

type fixture struct {
	router  http.Handler
	rdb     *redis.Client
	history *mockHistory
	metrics *obs.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	windows, err := cache.NewRollingWriter(rdb, cache.DefaultCandleWindow)
	require.NoError(t, err)
	reader, err := marketdata.NewReader(rdb, marketdata.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	history := &mockHistory{}
	metrics := obs.NewMetrics()
	return fixture{
		router:  New(reader, windows, history, metrics).Router(),
		rdb:     rdb,
		history: history,
		metrics: metrics,
	}
}

func (f fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f fixture) seed(t *testing.T, ts time.Time) {
	t.Helper()
	w, err := cache.NewRollingWriter(f.rdb, cache.DefaultCandleWindow)
	require.NoError(t, err)
	_, err = w.Apply(t.Context(), "AAPL", model.Candle{Symbol: "AAPL", Close: model.Float(180.5), Volume: model.Int(10), Timestamp: ts})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.metrics.AddInserted(3)

	rec := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap obs.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(3), snap.Inserted)
}

func TestCandles(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/candles/AAPL")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.seed(t, now.Add(-time.Minute))
	rec = f.get(t, "/candles/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)

	var entry cache.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	require.Len(t, entry, 1)
	assert.Equal(t, "2024-03-01T14:30:00Z", entry[0].Timestamp)

	rec = f.get(t, "/candles/A%20B")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLast(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/last/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":"NO_DATA","message":null}`, rec.Body.String())

	f.seed(t, now.Add(-30*time.Second))
	rec = f.get(t, "/last/AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"close":180.5`)
}

func TestPrices(t *testing.T) {
	f := newFixture(t)
	ticks, err := cache.NewTickWindow(f.rdb, cache.DefaultTickWindow)
	require.NoError(t, err)
	require.NoError(t, ticks.Push(t.Context(), "BTCUSDT", "61000.1"))
	require.NoError(t, ticks.Push(t.Context(), "BTCUSDT", "61000.2"))

	rec := f.get(t, "/prices/BTCUSDT")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","data":["61000.2","61000.1"]}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	from := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	f.history.On("Range", mock.Anything, "AAPL", from, to).
		Return([]model.Candle{{Symbol: "AAPL", Timestamp: from}}, nil).Once()
	rec := f.get(t, "/history/AAPL?from=2024-03-01T14:00:00Z&to=2024-03-01T15:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"timestamp":"2024-03-01T14:00:00Z"`)

	f.history.On("Range", mock.Anything, "MSFT", from, to).
		Return([]model.Candle(nil), errors.New("db down")).Once()
	rec = f.get(t, "/history/MSFT?from=2024-03-01T14:00:00Z&to=2024-03-01T15:00:00Z")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.get(t, "/history/AAPL?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.get(t, "/history/AAPL?from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.history.AssertExpectations(t)
}

func TestServeStopsOnCancel(t *testing.T) {
	api := New(nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- api.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
