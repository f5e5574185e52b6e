// Package telemetry keeps in-process counters for the status surface.
// Nothing here is ever transmitted off the device; the counters exist so
// `fieldsync status` and the daemon health endpoint can report what the
// worker and sync engine have been doing.
package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counter names used across the subsystem.
const (
	CounterCapturesEnqueued  = "captures_enqueued"
	CounterCapturesDelivered = "captures_delivered"
	CounterCaptureFailures   = "capture_failures"
	CounterSyncPasses        = "sync_passes"
	CounterCacheHits         = "cache_hits"
	CounterCacheMisses       = "cache_misses"
	CounterOfflineFallbacks  = "offline_fallbacks"
	CounterPushesShown       = "pushes_shown"
)

var (
	mu       sync.RWMutex
	counters = map[string]*atomic.Int64{}
)

// Incr adds one to the named counter.
func Incr(name string) {
	Add(name, 1)
}

// Add adds delta to the named counter.
func Add(name string, delta int64) {
	mu.RLock()
	c, ok := counters[name]
	mu.RUnlock()
	if !ok {
		mu.Lock()
		if c, ok = counters[name]; !ok {
			c = &atomic.Int64{}
			counters[name] = c
		}
		mu.Unlock()
	}
	c.Add(delta)
}

// Value reads the named counter.
func Value(name string) int64 {
	mu.RLock()
	defer mu.RUnlock()
	if c, ok := counters[name]; ok {
		return c.Load()
	}
	return 0
}

// Snapshot returns a copy of all counters.
func Snapshot() map[string]int64 {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]int64, len(counters))
	for name, c := range counters {
		out[name] = c.Load()
	}
	return out
}

// Reset clears all counters. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	counters = map[string]*atomic.Int64{}
}
