package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgate/internal/model/enum"
)

func TestResultMarshal(t *testing.T) {
	ok := Ok(json.RawMessage(`{"order":1}`))
	b, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"order":1}}`, string(b))

	fail := Fail[json.RawMessage](enum.CodeEngineUnavailable)
	b, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"ENGINE_UNAVAILABLE","message":null}`, string(b))

	withMsg := FailWithMessage[Candle](enum.CodeStaleData, "Price data is stale")
	b, err = json.Marshal(withMsg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"STALE_DATA","message":"Price data is stale"}`, string(b))
	assert.False(t, withMsg.IsOK())
	assert.Equal(t, "Price data is stale", withMsg.MessageText())
}

func TestValidSymbol(t *testing.T) {
	testCases := []struct {
		desc   string
		symbol string
		valid  bool
	}{
		{"plain", "AAPL", true},
		{"pair", "BTCUSDT", true},
		{"dotted", "BRK.B", true},
		{"empty", "", false},
		{"space", "AA PL", false},
		{"key separator", "candles:AAPL", false},
		{"newline", "AAPL\n", false},
		{"too long", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := ValidSymbol(tc.symbol); got != tc.valid {
				t.Fatalf("ValidSymbol(%q) = %v, want %v", tc.symbol, got, tc.valid)
			}
		})
	}
}

func TestTradeCommandSentAt(t *testing.T) {
	cmd := TradeCommand{Ts: 1700000000.5}
	assert.Equal(t, int64(1700000000), cmd.SentAt().Unix())
	assert.Equal(t, 500, cmd.SentAt().Nanosecond()/1e6)
}
