package yahoo

import (
	"time"

	"github.com/yanun0323/errors"

	"marketgate/internal/candle"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol string `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// Missing bars are reported as null.
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// latest returns the newest bar whose open time is at or before end.
func (r chartResponse) latest(symbol string, end time.Time) (candle.RawCandle, bool, error) {
	if r.Chart.Error != nil {
		return candle.RawCandle{}, false, errors.Errorf("chart error of %s: %s %s", symbol, r.Chart.Error.Code, r.Chart.Error.Description)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return candle.RawCandle{}, false, nil
	}

	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]
	for i := len(res.Timestamp) - 1; i >= 0; i-- {
		ts := time.Unix(res.Timestamp[i], 0).UTC()
		if ts.After(end) {
			continue
		}
		return candle.RawCandle{
			Symbol: symbol,
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: at(q.Volume, i),
			Time:   ts,
		}, true, nil
	}
	return candle.RawCandle{}, false, nil
}

func at(values []*float64, i int) any {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	return *values[i]
}
