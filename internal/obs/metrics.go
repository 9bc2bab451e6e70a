package obs

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the ingestion process
// and the trade gateway.
type Metrics struct {
	cycles        uint64
	cycleFailures uint64
	fetched       uint64
	fetchErrors   uint64
	inserted      uint64
	cacheApplies  uint64
	cacheErrors   uint64
	ticks         uint64
	tickDrops     uint64
	tickErrors    uint64
	reconnects    uint64

	mu            sync.Mutex
	tradeOutcomes map[string]uint64

	cycleLatency LatencyStats
	tradeLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
	Avg   time.Duration `json:"avg_ns"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Cycles        uint64            `json:"cycles"`
	CycleFailures uint64            `json:"cycle_failures"`
	Fetched       uint64            `json:"fetched"`
	FetchErrors   uint64            `json:"fetch_errors"`
	Inserted      uint64            `json:"inserted"`
	CacheApplies  uint64            `json:"cache_applies"`
	CacheErrors   uint64            `json:"cache_errors"`
	Ticks         uint64            `json:"ticks"`
	TickDrops     uint64            `json:"tick_drops"`
	TickErrors    uint64            `json:"tick_errors"`
	Reconnects    uint64            `json:"reconnects"`
	TradeOutcomes map[string]uint64 `json:"trade_outcomes"`
	CycleLatency  LatencySnapshot   `json:"cycle_latency"`
	TradeLatency  LatencySnapshot   `json:"trade_latency"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{tradeOutcomes: make(map[string]uint64)}
}

// ObserveCycle records one ingestion cycle and its duration.
func (m *Metrics) ObserveCycle(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycles, 1)
	if failed {
		atomic.AddUint64(&m.cycleFailures, 1)
	}
	m.cycleLatency.Observe(d)
}

// AddFetched records symbols returned by the provider and symbols that failed.
func (m *Metrics) AddFetched(ok, failed int) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fetched, uint64(max(ok, 0)))
	atomic.AddUint64(&m.fetchErrors, uint64(max(failed, 0)))
}

// AddInserted records rows newly written to the durable store.
func (m *Metrics) AddInserted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.inserted, uint64(n))
}

// IncCacheApply records one rolling cache write.
func (m *Metrics) IncCacheApply(err error) {
	if m == nil {
		return
	}
	if err != nil {
		atomic.AddUint64(&m.cacheErrors, 1)
		return
	}
	atomic.AddUint64(&m.cacheApplies, 1)
}

// IncTick records one tick written to its window.
func (m *Metrics) IncTick(err error) {
	if m == nil {
		return
	}
	if err != nil {
		atomic.AddUint64(&m.tickErrors, 1)
		return
	}
	atomic.AddUint64(&m.ticks, 1)
}

// IncTickDrop records a tick dropped by a full queue.
func (m *Metrics) IncTickDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.tickDrops, 1)
}

// IncReconnect records a feed reconnect.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.reconnects, 1)
}

// ObserveTrade records a gateway outcome, keyed by status or error code, and its
// round trip latency.
func (m *Metrics) ObserveTrade(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.tradeOutcomes[outcome]++
	m.mu.Unlock()
	if d > 0 {
		m.tradeLatency.Observe(d)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	outcomes := make(map[string]uint64, len(m.tradeOutcomes))
	for k, v := range m.tradeOutcomes {
		outcomes[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Cycles:        atomic.LoadUint64(&m.cycles),
		CycleFailures: atomic.LoadUint64(&m.cycleFailures),
		Fetched:       atomic.LoadUint64(&m.fetched),
		FetchErrors:   atomic.LoadUint64(&m.fetchErrors),
		Inserted:      atomic.LoadUint64(&m.inserted),
		CacheApplies:  atomic.LoadUint64(&m.cacheApplies),
		CacheErrors:   atomic.LoadUint64(&m.cacheErrors),
		Ticks:         atomic.LoadUint64(&m.ticks),
		TickDrops:     atomic.LoadUint64(&m.tickDrops),
		TickErrors:    atomic.LoadUint64(&m.tickErrors),
		Reconnects:    atomic.LoadUint64(&m.reconnects),
		TradeOutcomes: outcomes,
		CycleLatency:  m.cycleLatency.Snapshot(),
		TradeLatency:  m.tradeLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
