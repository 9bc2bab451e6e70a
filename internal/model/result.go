package model

import (
	"encoding/json"

	"marketgate/internal/model/enum"
)

// Result is the tagged outcome handed back to strategy code: either Ok with Data, or
// Error with Code and an optional Message.
type Result[T any] struct {
	Status  enum.Status
	Data    T
	Code    enum.ErrorCode
	Message *string
}

// TradeResult carries the engine payload verbatim.
type TradeResult = Result[json.RawMessage]

// CandleResult carries the newest cached candle.
type CandleResult = Result[Candle]

func Ok[T any](data T) Result[T] {
	return Result[T]{Status: enum.StatusOK, Data: data}
}

func Fail[T any](code enum.ErrorCode) Result[T] {
	return Result[T]{Status: enum.StatusError, Code: code}
}

func FailWithMessage[T any](code enum.ErrorCode, message string) Result[T] {
	return Result[T]{Status: enum.StatusError, Code: code, Message: &message}
}

func (r Result[T]) IsOK() bool {
	return r.Status == enum.StatusOK
}

// MessageText returns the message or an empty string.
func (r Result[T]) MessageText() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

type okEnvelope[T any] struct {
	Status enum.Status `json:"status"`
	Data   T           `json:"data"`
}

type errorEnvelope struct {
	Status  enum.Status    `json:"status"`
	Code    enum.ErrorCode `json:"code"`
	Message *string        `json:"message"`
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.IsOK() {
		return json.Marshal(okEnvelope[T]{Status: enum.StatusOK, Data: r.Data})
	}
	return json.Marshal(errorEnvelope{Status: enum.StatusError, Code: r.Code, Message: r.Message})
}
