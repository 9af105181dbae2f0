package health

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// latencySample is one probe round-trip with its timestamp.
type latencySample struct {
	value float64 // seconds
	time  time.Time
}

// LatencyStats is a point-in-time summary of probe round-trip times over
// the rolling window.
type LatencyStats struct {
	Count int
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// LatencyTracker keeps a rolling window of probe latencies and computes
// percentiles with a t-digest. Samples older than the window are dropped
// and the digest rebuilt, so long-lived launchers don't accumulate stale
// startup latencies.
type LatencyTracker struct {
	mu      sync.Mutex
	digest  *tdigest.TDigest
	samples []latencySample
	window  time.Duration
}

// NewLatencyTracker creates a tracker with the given rolling window.
func NewLatencyTracker(window time.Duration) *LatencyTracker {
	return &LatencyTracker{
		digest: tdigest.NewWithCompression(100),
		window: window,
	}
}

// Record adds one probe round-trip time.
func (t *LatencyTracker) Record(d time.Duration) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanupLocked(now)
	t.samples = append(t.samples, latencySample{value: d.Seconds(), time: now})
	t.digest.Add(d.Seconds(), 1)
}

// Snapshot returns current percentiles over the window.
func (t *LatencyTracker) Snapshot() LatencyStats {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cleanupLocked(now)

	stats := LatencyStats{Count: len(t.samples)}
	if len(t.samples) == 0 {
		return stats
	}

	stats.P50 = secondsToDuration(t.digest.Quantile(0.50))
	stats.P95 = secondsToDuration(t.digest.Quantile(0.95))

	max := t.samples[0].value
	for _, s := range t.samples {
		if s.value > max {
			max = s.value
		}
	}
	stats.Max = secondsToDuration(max)

	return stats
}

// cleanupLocked drops samples outside the window and rebuilds the digest.
// T-digests cannot evict, so expiry means re-adding the survivors.
func (t *LatencyTracker) cleanupLocked(now time.Time) {
	cutoff := now.Add(-t.window)

	keep := t.samples[:0]
	expired := false
	for _, s := range t.samples {
		if s.time.After(cutoff) {
			keep = append(keep, s)
		} else {
			expired = true
		}
	}
	t.samples = keep

	if expired {
		t.digest = tdigest.NewWithCompression(100)
		for _, s := range t.samples {
			t.digest.Add(s.value, 1)
		}
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
