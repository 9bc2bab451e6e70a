package model

import "time"

// Candle is the canonical OHLCV aggregate for one symbol and one minute bucket.
//
// Numeric fields are nil when the provider value could not be parsed. A nil field is
// valid-but-unknown and is never replaced with zero.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Open      *float64  `json:"open"`
	High      *float64  `json:"high"`
	Low       *float64  `json:"low"`
	Close     *float64  `json:"close"`
	Volume    *int64    `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Key identifies a candle for deduplication.
type Key struct {
	Symbol    string
	Timestamp int64
}

func (c Candle) Key() Key {
	return Key{Symbol: c.Symbol, Timestamp: c.Timestamp.Unix()}
}

// Equal reports whether both candles carry the same symbol, instant and values.
func (c Candle) Equal(o Candle) bool {
	return c.Symbol == o.Symbol &&
		c.Timestamp.Equal(o.Timestamp) &&
		equalFloat(c.Open, o.Open) &&
		equalFloat(c.High, o.High) &&
		equalFloat(c.Low, o.Low) &&
		equalFloat(c.Close, o.Close) &&
		equalInt(c.Volume, o.Volume)
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}
