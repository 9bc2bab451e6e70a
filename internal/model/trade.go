package model

import (
	"time"

	"marketgate/internal/model/enum"
)

// TradeCommand is the wire message sent to the execution engine.
// It is built per call and never persisted.
type TradeCommand struct {
	StrategyID string      `json:"strategy_id"`
	Symbol     string      `json:"symbol"`
	Action     enum.Action `json:"action"`
	Quantity   int64       `json:"quantity"`
	Price      *float64    `json:"price"`
	Ts         float64     `json:"ts"`
}

// SentAt returns Ts as an instant.
func (c TradeCommand) SentAt() time.Time {
	sec := int64(c.Ts)
	nsec := int64((c.Ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// EpochSeconds converts t into fractional epoch seconds.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
