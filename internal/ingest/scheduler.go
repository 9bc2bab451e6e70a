package ingest

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"marketgate/internal/candle"
	"marketgate/internal/model"
	"marketgate/internal/obs"
	"marketgate/internal/provider"
	"marketgate/pkg/exception"
)

const (
	DefaultPeriod   = 60 * time.Second
	DefaultInterval = time.Minute
	// DefaultSettle delays each cycle past the period boundary so the candle that just
	// closed is published by the provider.
	DefaultSettle = 2 * time.Second
)

// CandleStore persists candles, skipping keys already stored.
type CandleStore interface {
	UpsertBatch(ctx context.Context, candles []model.Candle) (int64, error)
}

// CandleCache keeps the rolling window of recent candles.
type CandleCache interface {
	Apply(ctx context.Context, symbol string, c model.Candle) ([]model.Candle, error)
}

// Report summarizes one ingestion cycle.
type Report struct {
	Trace    string
	End      time.Time
	Fetched  int
	Failed   int
	Inserted int64
	Applied  int
}

type Option func(*Scheduler)

func WithMetrics(m *obs.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.period = d
		}
	}
}

// WithSettle sets the offset of each cycle after the period boundary. An offset not
// shorter than the period is ignored.
func WithSettle(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.settle = d
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Scheduler periodically pulls the latest closed candle of every symbol, persists the
// batch and refreshes the rolling cache. A failed cycle is logged and never stops the loop.
type Scheduler struct {
	provider provider.Provider
	store    CandleStore
	cache    CandleCache
	symbols  []string

	period   time.Duration
	interval time.Duration
	settle   time.Duration
	now      func() time.Time
	metrics  *obs.Metrics
	traces   *obs.TraceGenerator
}

func NewScheduler(p provider.Provider, store CandleStore, cache CandleCache, symbols []string, opts ...Option) (*Scheduler, error) {
	if p == nil {
		return nil, exception.ErrNilProvider
	}
	if store == nil || cache == nil {
		return nil, exception.ErrNilInstance
	}
	if len(symbols) == 0 {
		return nil, exception.ErrEmptySymbolList
	}

	s := &Scheduler{
		provider: p,
		store:    store,
		cache:    cache,
		symbols:  append([]string(nil), symbols...),
		period:   DefaultPeriod,
		interval: DefaultInterval,
		settle:   DefaultSettle,
		now:      time.Now,
		traces:   obs.NewTraceGenerator(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes a cycle immediately and then at every period boundary plus the settle
// offset until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logs.Infof("ingest: scheduler started, provider: %s, symbols: %d, period: %s, settle: %s", s.provider.Name(), len(s.symbols), s.period, s.settle)

	for {
		s.cycle(ctx)

		timer := time.NewTimer(s.untilNext(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			logs.Info("ingest: scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}

// untilNext returns the wait until the next period boundary plus settle, strictly after now.
func (s *Scheduler) untilNext(now time.Time) time.Duration {
	offset := s.settle
	if offset >= s.period {
		offset = 0
	}
	next := now.Truncate(s.period).Add(offset)
	for !next.After(now) {
		next = next.Add(s.period)
	}
	return next.Sub(now)
}

func (s *Scheduler) cycle(ctx context.Context) {
	start := time.Now()
	report, err := s.RunCycle(ctx)
	s.metrics.ObserveCycle(time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logs.Errorf("ingest: cycle %s failed, err: %+v", report.Trace, err)
		return
	}
	logs.Infof("ingest: cycle %s done, end: %s, fetched: %d, failed: %d, inserted: %d, cached: %d",
		report.Trace, report.End.Format(time.RFC3339), report.Fetched, report.Failed, report.Inserted, report.Applied)
}

// RunCycle performs one fetch, persist and cache pass.
func (s *Scheduler) RunCycle(ctx context.Context) (Report, error) {
	report := Report{
		Trace: s.traces.NextString(),
		End:   provider.ClosedBoundary(s.now(), s.interval),
	}

	batch, err := s.provider.Latest(ctx, provider.Request{
		Symbols:  s.symbols,
		Interval: s.interval,
		End:      report.End,
	})
	if err != nil {
		s.metrics.AddFetched(0, len(s.symbols))
		return report, errors.Wrapf(err, "fetch %d symbols from %s", len(s.symbols), s.provider.Name())
	}

	for symbol, ferr := range batch.Errors {
		logs.Warnf("ingest: cycle %s, skip %s, err: %+v", report.Trace, symbol, ferr)
	}

	candles := make([]model.Candle, 0, len(batch.Candles))
	for _, symbol := range s.symbols {
		raw, ok := batch.Candles[symbol]
		if !ok {
			continue
		}
		if raw.Symbol == "" {
			raw.Symbol = symbol
		}
		c, err := candle.Normalize(raw)
		if err != nil {
			logs.Warnf("ingest: cycle %s, drop %s, err: %+v", report.Trace, symbol, err)
			report.Failed++
			continue
		}
		candles = append(candles, c)
	}
	report.Fetched = len(candles)
	report.Failed += len(batch.Errors)
	s.metrics.AddFetched(report.Fetched, report.Failed)

	if len(candles) == 0 {
		return report, nil
	}

	report.Inserted, err = s.store.UpsertBatch(ctx, candles)
	if err != nil {
		return report, errors.Wrap(err, "persist batch")
	}
	s.metrics.AddInserted(report.Inserted)

	for _, c := range candles {
		_, err := s.cache.Apply(ctx, c.Symbol, c)
		s.metrics.IncCacheApply(err)
		if err != nil {
			logs.Errorf("ingest: cycle %s, cache %s, err: %+v", report.Trace, c.Symbol, err)
			continue
		}
		report.Applied++
	}

	return report, nil
}
