package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgate/internal/candle"
	"marketgate/internal/provider"
	"marketgate/pkg/exception"
)

// 2024-03-01T14:00:00Z
const openMillis = 1709301600000

func TestLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			_, _ = w.Write([]byte(`[
				[1709301540000,"61000.10","61010.00","60990.00","61005.50","12.75",1709301599999,"0",10,"0","0","0"],
				[1709301600000,"61005.50","61020.00","61000.00","abc","3.2",1709301659999,"0",10,"0","0","0"],
				[1709301660000,"61015.00","61030.00","61010.00","61020.00","1.0",1709301719999,"0",10,"0","0","0"]
			]`))
		case "NONE":
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL)
	end := time.UnixMilli(openMillis).UTC()
	batch, err := c.Latest(context.Background(), provider.Request{
		Symbols:  []string{"BTCUSDT", "NONE", "BAD"},
		Interval: time.Minute,
		End:      end,
	})
	require.NoError(t, err)

	got, err := candle.Normalize(batch.Candles["BTCUSDT"])
	require.NoError(t, err)
	assert.Equal(t, end, got.Timestamp)
	assert.Equal(t, 61005.5, *got.Open)
	assert.Nil(t, got.Close)
	assert.Equal(t, int64(3), *got.Volume)

	_, ok := batch.Candles["NONE"]
	assert.False(t, ok)
	assert.ErrorIs(t, batch.Errors["BAD"], exception.ErrProviderStatus)
	assert.Contains(t, batch.Errors["BAD"].Error(), "Invalid symbol.")
}

func TestKlineMalformed(t *testing.T) {
	_, err := kline{[]byte(`1`), []byte(`"1"`)}.raw("X")
	assert.Error(t, err)
}
