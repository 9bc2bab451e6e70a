package obs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle(10*time.Millisecond, false)
	m.ObserveCycle(30*time.Millisecond, true)
	m.AddFetched(3, 1)
	m.AddInserted(2)
	m.AddInserted(0)
	m.IncCacheApply(nil)
	m.IncCacheApply(errors.New("x"))
	m.IncTick(nil)
	m.IncTickDrop()
	m.IncReconnect()
	m.ObserveTrade("ok", time.Millisecond)
	m.ObserveTrade("ENGINE_UNAVAILABLE", 0)

	s := m.Snapshot()
	assert.Equal(t, uint64(2), s.Cycles)
	assert.Equal(t, uint64(1), s.CycleFailures)
	assert.Equal(t, uint64(3), s.Fetched)
	assert.Equal(t, uint64(1), s.FetchErrors)
	assert.Equal(t, uint64(2), s.Inserted)
	assert.Equal(t, uint64(1), s.CacheApplies)
	assert.Equal(t, uint64(1), s.CacheErrors)
	assert.Equal(t, uint64(1), s.Ticks)
	assert.Equal(t, uint64(1), s.TickDrops)
	assert.Equal(t, uint64(1), s.Reconnects)
	assert.Equal(t, map[string]uint64{"ok": 1, "ENGINE_UNAVAILABLE": 1}, s.TradeOutcomes)
	assert.Equal(t, 10*time.Millisecond, s.CycleLatency.Min)
	assert.Equal(t, 30*time.Millisecond, s.CycleLatency.Max)
	assert.Equal(t, 20*time.Millisecond, s.CycleLatency.Avg)
	assert.Equal(t, uint64(1), s.TradeLatency.Count)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(time.Second, true)
	m.IncTick(nil)
	m.ObserveTrade("ok", time.Second)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestTraceGeneratorConcurrent(t *testing.T) {
	g := NewTraceGenerator(100)

	var (
		mu   sync.Mutex
		seen = map[uint64]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
	assert.NotEmpty(t, g.NextString())
}

func TestStartProfilerDisabled(t *testing.T) {
	stop, err := StartProfiler("marketgate", "", nil)
	require.NoError(t, err)
	stop()
}
