package trade

import (
	"bytes"
	"encoding/json"

	"github.com/bytedance/sonic"

	"marketgate/internal/model"
	"marketgate/internal/model/enum"
	"marketgate/pkg/exception"
)

// EncodeCommand serializes cmd for the engine. A market order carries "price": null.
func EncodeCommand(cmd model.TradeCommand) ([]byte, error) {
	return sonic.Marshal(cmd)
}

// DecodeCommand parses a command received by an engine.
func DecodeCommand(payload []byte) (model.TradeCommand, error) {
	var cmd model.TradeCommand
	if err := sonic.Unmarshal(payload, &cmd); err != nil {
		return model.TradeCommand{}, err
	}
	return cmd, nil
}

type replyEnvelope struct {
	Status  *string         `json:"status"`
	Data    json.RawMessage `json:"data"`
	Code    *string         `json:"code"`
	Message json.RawMessage `json:"message"`
}

// DecodeReply parses an engine reply into a tagged result. The reply must be a JSON
// object with status "ok" or "error"; an error reply must carry a code.
func DecodeReply(payload []byte) (model.TradeResult, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return model.TradeResult{}, exception.ErrTradeEmptyReply
	}
	if payload[0] != '{' {
		return model.TradeResult{}, exception.ErrTradeBadEnvelope
	}

	var env replyEnvelope
	if err := sonic.Unmarshal(payload, &env); err != nil {
		return model.TradeResult{}, exception.ErrTradeBadEnvelope
	}
	if env.Status == nil {
		return model.TradeResult{}, exception.ErrTradeBadEnvelope
	}

	switch enum.Status(*env.Status) {
	case enum.StatusOK:
		data := env.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		return model.Ok(data), nil
	case enum.StatusError:
		if env.Code == nil || *env.Code == "" {
			return model.TradeResult{}, exception.ErrTradeBadEnvelope
		}
		code := enum.ErrorCode(*env.Code)
		var msg *string
		if len(env.Message) > 0 && sonic.Unmarshal(env.Message, &msg) == nil && msg != nil {
			return model.FailWithMessage[json.RawMessage](code, *msg), nil
		}
		return model.Fail[json.RawMessage](code), nil
	default:
		return model.TradeResult{}, exception.ErrTradeBadEnvelope
	}
}

// EncodeReply serializes a result into the engine reply contract.
func EncodeReply(res model.TradeResult) ([]byte, error) {
	return sonic.Marshal(res)
}
