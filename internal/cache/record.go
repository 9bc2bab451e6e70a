package cache

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/candle"
	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

// Record is the cached form of a candle. Timestamp is RFC 3339 in UTC.
type Record struct {
	Symbol    string   `json:"symbol"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *int64   `json:"volume"`
	Timestamp string   `json:"timestamp"`
}

// Entry is a decoded rolling window, oldest first.
type Entry []Record

// NewRecord converts c into its cached form.
func NewRecord(c model.Candle) Record {
	return Record{
		Symbol:    c.Symbol,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Timestamp: c.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Candle parses the record back into a canonical candle.
func (r Record) Candle() (model.Candle, error) {
	ts, err := candle.ParseTimestamp(r.Timestamp)
	if err != nil {
		return model.Candle{}, err
	}
	return model.Candle{
		Symbol:    r.Symbol,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Timestamp: ts,
	}, nil
}

// Newest returns the last record of the entry.
func (e Entry) Newest() (Record, bool) {
	if len(e) == 0 {
		return Record{}, false
	}
	return e[len(e)-1], true
}

// EncodeEntry serializes candles in the canonical representation.
func EncodeEntry(candles []model.Candle) (string, error) {
	records := make([]Record, 0, len(candles))
	for _, c := range candles {
		records = append(records, NewRecord(c))
	}
	b, err := sonic.Marshal(records)
	if err != nil {
		return "", errors.Wrap(err, "encode cache entry")
	}
	return string(b), nil
}

// DecodeEntry parses the canonical representation.
func DecodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := sonic.UnmarshalString(raw, &e); err != nil {
		return nil, errors.Wrapf(exception.ErrMalformedRecord, "%v", err)
	}
	return e, nil
}

// decodeLenient reads an entry written by any earlier writer. It accepts a single
// object, an array of objects or an array of JSON encoded strings, and skips
// elements that cannot be normalized.
func decodeLenient(symbol, raw string) []model.Candle {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var elements []json.RawMessage
	switch raw[0] {
	case '[':
		if err := sonic.UnmarshalString(raw, &elements); err != nil {
			logs.Warnf("cache: drop unreadable entry %s, err: %+v", CandleKey(symbol), err)
			return nil
		}
	case '{', '"':
		elements = []json.RawMessage{json.RawMessage(raw)}
	default:
		logs.Warnf("cache: drop unreadable entry %s", CandleKey(symbol))
		return nil
	}

	out := make([]model.Candle, 0, len(elements))
	for i, el := range elements {
		c, err := decodeElement(symbol, el)
		if err != nil {
			logs.Warnf("cache: skip element %d of %s, err: %+v", i, CandleKey(symbol), err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func decodeElement(symbol string, el json.RawMessage) (model.Candle, error) {
	// Opaque blobs hold the object as a JSON string.
	var blob string
	if err := sonic.Unmarshal(el, &blob); err == nil {
		el = json.RawMessage(blob)
	}

	var fields map[string]any
	if err := sonic.Unmarshal(el, &fields); err != nil {
		return model.Candle{}, errors.Wrapf(exception.ErrMalformedRecord, "%v", err)
	}

	raw := candle.RawCandle{
		Symbol: symbol,
		Open:   fields["open"],
		High:   fields["high"],
		Low:    fields["low"],
		Close:  fields["close"],
		Volume: fields["volume"],
	}
	if s, ok := fields["symbol"].(string); ok && s != "" {
		raw.Symbol = s
	}
	switch ts := fields["timestamp"].(type) {
	case string:
		raw.TimeText = ts
	case float64:
		raw.Time = epochTime(ts)
	default:
		return model.Candle{}, exception.ErrInvalidTimestamp
	}
	return candle.Normalize(raw)
}

// epochTime accepts epoch seconds or milliseconds.
func epochTime(v float64) time.Time {
	if v > 1e11 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

// Merge inserts c into window, replacing any candle with the same timestamp, and
// keeps the newest size candles ordered by timestamp.
func Merge(window []model.Candle, c model.Candle, size int) []model.Candle {
	out := make([]model.Candle, 0, len(window)+1)
	for _, w := range window {
		if w.Timestamp.Equal(c.Timestamp) {
			continue
		}
		out = append(out, w)
	}
	out = append(out, c)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out
}
