package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgate/internal/model"
	"marketgate/internal/model/enum"
)

func TestDecodeReplyMessageForms(t *testing.T) {
	res, err := DecodeReply([]byte(`{"status":"error","code":"NO_FUNDS","message":null}`))
	require.NoError(t, err)
	assert.Nil(t, res.Message)

	res, err = DecodeReply([]byte(`  {"status":"error","code":"NO_FUNDS"}`))
	require.NoError(t, err)
	assert.Equal(t, enum.ErrorCode("NO_FUNDS"), res.Code)

	res, err = DecodeReply([]byte(`{"status":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "null", string(res.Data))
}

func TestErrorReplyRoundTripsVerbatim(t *testing.T) {
	testCases := []struct {
		desc  string
		reply string
	}{
		{"null message", `{"status":"error","code":"NO_FUNDS","message":null}`},
		{"empty message", `{"status":"error","code":"NO_FUNDS","message":""}`},
		{"text message", `{"status":"error","code":"NO_FUNDS","message":"balance 0"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			res, err := DecodeReply([]byte(tc.reply))
			require.NoError(t, err)
			b, err := EncodeReply(res)
			require.NoError(t, err)
			assert.JSONEq(t, tc.reply, string(b))
		})
	}
}

func TestEncodeReplyMatchesContract(t *testing.T) {
	b, err := EncodeReply(model.Ok(json.RawMessage(`{"id":1}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"id":1}}`, string(b))

	b, err = EncodeReply(model.FailWithMessage[json.RawMessage]("RISK_REJECTED", "kill switch"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"RISK_REJECTED","message":"kill switch"}`, string(b))

	res, err := DecodeReply(b)
	require.NoError(t, err)
	assert.Equal(t, "kill switch", res.MessageText())
}

func TestNewTransportSchemes(t *testing.T) {
	tr, err := NewTransport("unix:///tmp/engine.sock", "s1")
	require.NoError(t, err)
	assert.IsType(t, &UDS{}, tr)
	require.NoError(t, tr.Close())

	tr, err = NewTransport("tcp://127.0.0.1:5555", "s1")
	require.NoError(t, err)
	assert.IsType(t, &ZMQ{}, tr)
	require.NoError(t, tr.Close())

	_, err = NewTransport("http://x", "s1")
	assert.Error(t, err)

	_, err = NewTransport("tcp://127.0.0.1:5555", "")
	assert.Error(t, err)
}
