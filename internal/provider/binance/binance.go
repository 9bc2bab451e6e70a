package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"marketgate/internal/candle"
	"marketgate/internal/provider"
	"marketgate/pkg/exception"
)

const (
	DefaultBaseURL = "https://api.binance.com"
	klinesPath     = "/api/v3/klines"

	lookback = 3
	parallel = 8
)

var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	24 * time.Hour:   "1d",
}

// Client reads spot klines from the Binance REST API.
type Client struct {
	client  *http.Client
	baseURL string
}

func New(client *http.Client, baseURL string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{client: client, baseURL: baseURL}
}

func (c *Client) Name() string {
	return "binance"
}

func (c *Client) Latest(ctx context.Context, req provider.Request) (provider.Batch, error) {
	if len(req.Symbols) == 0 {
		return provider.Batch{}, exception.ErrEmptySymbolList
	}
	interval, ok := intervals[req.Interval]
	if !ok {
		return provider.Batch{}, errors.Wrapf(exception.ErrUnsupportedInterval, "%s", req.Interval)
	}

	end := req.End.UTC()
	start := end.Add(-lookback * req.Interval)
	batch := provider.FanOut(ctx, req.Symbols, parallel, func(ctx context.Context, symbol string) (candle.RawCandle, bool, error) {
		return c.latest(ctx, symbol, interval, start, end)
	})
	if err := batch.Failed(req.Symbols); err != nil {
		return provider.Batch{}, err
	}
	return batch, nil
}

func (c *Client) latest(ctx context.Context, symbol, interval string, start, end time.Time) (candle.RawCandle, bool, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(lookback+1))

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+klinesPath+"?"+q.Encode(), nil)
	if err != nil {
		return candle.RawCandle{}, false, err
	}

	resp, err := c.client.Do(r)
	if err != nil {
		return candle.RawCandle{}, false, errors.Wrapf(exception.ErrProviderRequest, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr apiError
		_ = sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&apiErr)
		return candle.RawCandle{}, false, errors.Wrapf(exception.ErrProviderStatus, "%s %d %s", symbol, resp.StatusCode, apiErr.Msg)
	}

	var rows []kline
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return candle.RawCandle{}, false, errors.Wrapf(err, "decode klines of %s", symbol)
	}

	for i := len(rows) - 1; i >= 0; i-- {
		raw, err := rows[i].raw(symbol)
		if err != nil {
			return candle.RawCandle{}, false, err
		}
		if raw.Time.After(end) {
			continue
		}
		return raw, true, nil
	}
	return candle.RawCandle{}, false, nil
}
