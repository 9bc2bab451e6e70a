package candle

import (
	"strings"
	"time"

	"github.com/yanun0323/errors"

	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

// RawCandle is a provider candle before normalization.
//
// Numeric fields accept whatever the provider decoded (float64, string, json.Number,
// pointers, nil). The timestamp is taken from Time when set, otherwise parsed from TimeText.
type RawCandle struct {
	Symbol   string
	Open     any
	High     any
	Low      any
	Close    any
	Volume   any
	Time     time.Time
	TimeText string
}

// FromCandle turns a canonical candle back into raw form.
func FromCandle(c model.Candle) RawCandle {
	return RawCandle{
		Symbol: c.Symbol,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
		Time:   c.Timestamp,
	}
}

// Normalize maps a raw candle into the canonical UTC, minute aligned form.
// Unparsable numeric fields become nil; only an unusable timestamp is an error.
func Normalize(raw RawCandle) (model.Candle, error) {
	var (
		ts  time.Time
		err error
	)
	if !raw.Time.IsZero() {
		ts = TruncateUTC(raw.Time)
	} else {
		ts, err = ParseTimestamp(raw.TimeText)
		if err != nil {
			return model.Candle{}, err
		}
	}

	return model.Candle{
		Symbol:    strings.TrimSpace(raw.Symbol),
		Open:      ToFloat(raw.Open),
		High:      ToFloat(raw.High),
		Low:       ToFloat(raw.Low),
		Close:     ToFloat(raw.Close),
		Volume:    ToInt(raw.Volume),
		Timestamp: ts,
	}, nil
}

// TruncateUTC converts t to UTC and zeroes seconds and sub-seconds.
func TruncateUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// zone-less layouts parse as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 style timestamp and normalizes it.
func ParseTimestamp(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, exception.ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return TruncateUTC(t), nil
		}
	}
	return time.Time{}, errors.Wrapf(exception.ErrInvalidTimestamp, "%q", text)
}
