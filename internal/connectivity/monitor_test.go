package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbeReportsReachableOrigin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMonitor(srv.URL+"/api/health", time.Minute)
	if m.Online() {
		t.Fatal("monitor should start offline")
	}
	if !m.Probe(context.Background()) {
		t.Fatal("probe against a live origin should succeed")
	}
	if !m.Online() {
		t.Fatal("state should follow the probe")
	}
}

func TestProbeTreatsServerErrorsAsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewMonitor(srv.URL, time.Minute)
	if m.Probe(context.Background()) {
		t.Fatal("5xx responses mean the portal is effectively down")
	}
}

func TestProbeTreats4xxAsOnline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	// Reaching the origin at all counts as connectivity.
	m := NewMonitor(srv.URL+"/missing", time.Minute)
	if !m.Probe(context.Background()) {
		t.Fatal("a 404 still proves the network path works")
	}
}

func TestTransitionCallbacksFireOnChangeOnly(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:1", time.Minute)

	var transitions atomic.Int32
	var lastState atomic.Bool
	m.OnTransition(func(online bool) {
		transitions.Add(1)
		lastState.Store(online)
	})

	m.SetOnline(true)
	m.SetOnline(true)
	m.SetOnline(false)

	if transitions.Load() != 2 {
		t.Fatalf("expected 2 transitions, got %d", transitions.Load())
	}
	if lastState.Load() {
		t.Fatal("last transition should be to offline")
	}
}

func TestStartProbesImmediately(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer srv.Close()

	m := NewMonitor(srv.URL, time.Hour)
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Online() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("first probe never ran (saw %d requests)", probes.Load())
}
