package live

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultReconnectMin = time.Second
	DefaultReconnectMax = 30 * time.Second
)

// Backoff spaces the re-dials of a dropped feed. The wait grows by Factor from Min
// up to Max and is spread by +/- Jitter of itself.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Min:    DefaultReconnectMin,
		Max:    DefaultReconnectMax,
		Factor: 2,
		Jitter: 0.2,
	}
}

func (b Backoff) normalized() Backoff {
	if b.Min <= 0 {
		b.Min = DefaultReconnectMin
	}
	if b.Max < b.Min {
		b.Max = max(b.Min, DefaultReconnectMax)
	}
	if b.Factor <= 1 {
		b.Factor = 2
	}
	b.Jitter = min(max(b.Jitter, 0), 1)
	return b
}

// Delay returns the wait before re-dial attempt, counted from 1 since the last
// session that delivered a tick.
func (b Backoff) Delay(attempt int) time.Duration {
	b = b.normalized()
	attempt = max(attempt, 1)

	wait := float64(b.Min) * math.Pow(b.Factor, float64(attempt-1))
	if wait > float64(b.Max) || math.IsInf(wait, 1) {
		wait = float64(b.Max)
	}
	if b.Jitter > 0 {
		wait += wait * b.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(wait)
}

// sleep waits d and reports false when ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
