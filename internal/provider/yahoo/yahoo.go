package yahoo

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
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart/"
	userAgent      = "Mozilla/5.0 (compatible; marketgate/1.0)"

	// lookback mirrors the three minute window used when polling the chart API.
	lookback = 3
	parallel = 4
)

var intervals = map[time.Duration]string{
	time.Minute:      "1m",
	2 * time.Minute:  "2m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "60m",
	24 * time.Hour:   "1d",
}

// Client reads candles from the Yahoo Finance chart endpoint.
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
	return "yahoo"
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
	q.Set("interval", interval)
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	// period2 is exclusive.
	q.Set("period2", strconv.FormatInt(end.Add(time.Second).Unix(), 10))
	q.Set("includePrePost", "false")

	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+chartPath+url.PathEscape(symbol)+"?"+q.Encode(), nil)
	if err != nil {
		return candle.RawCandle{}, false, err
	}
	r.Header.Set("User-Agent", userAgent)
	r.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(r)
	if err != nil {
		return candle.RawCandle{}, false, errors.Wrapf(exception.ErrProviderRequest, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return candle.RawCandle{}, false, errors.Wrapf(exception.ErrProviderStatus, "%s %d", symbol, resp.StatusCode)
	}

	var data chartResponse
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&data); err != nil {
		return candle.RawCandle{}, false, errors.Wrapf(err, "decode chart of %s", symbol)
	}

	return data.latest(symbol, end)
}
