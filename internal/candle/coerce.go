package candle

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToFloat coerces v into a float, returning nil for missing or non-numeric input.
func ToFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case *float64:
		if x == nil {
			return nil
		}
		f = *x
	case *int64:
		if x == nil {
			return nil
		}
		f = float64(*x)
	case json.Number:
		d, ok := parseDecimal(x.String())
		if !ok {
			return nil
		}
		f = d.InexactFloat64()
	case string:
		d, ok := parseDecimal(x)
		if !ok {
			return nil
		}
		f = d.InexactFloat64()
	case decimal.Decimal:
		f = x.InexactFloat64()
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ToInt coerces v into an integer, truncating fractional input.
func ToInt(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint64:
		if x > math.MaxInt64 {
			return nil
		}
		n = int64(x)
	case *int64:
		if x == nil {
			return nil
		}
		n = *x
	case json.Number, string, decimal.Decimal, float64, float32, *float64:
		f := ToFloat(x)
		if f == nil || *f >= math.MaxInt64 || *f <= math.MinInt64 {
			return nil
		}
		n = int64(*f)
	default:
		return nil
	}
	return &n
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
