package telemetry

import (
	"sync"
	"testing"
)

func TestIncrAndValue(t *testing.T) {
	Reset()

	if Value(CounterCacheHits) != 0 {
		t.Fatal("unknown counter should read 0")
	}
	Incr(CounterCacheHits)
	Incr(CounterCacheHits)
	Add(CounterCacheHits, 3)
	if got := Value(CounterCacheHits); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	Reset()
	Incr(CounterPushesShown)

	snap := Snapshot()
	snap[CounterPushesShown] = 99

	if Value(CounterPushesShown) != 1 {
		t.Fatal("mutating a snapshot must not touch the live counters")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				Incr(CounterCapturesDelivered)
			}
		}()
	}
	wg.Wait()

	if got := Value(CounterCapturesDelivered); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
}
