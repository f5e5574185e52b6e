// Package connectivity tracks whether the portal is reachable. The daemon's
// probe loop is the platform "online" signal: transitions fire registered
// callbacks, which is what triggers background sync.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fieldport/fieldsync/internal/logging"
)

// Monitor probes a URL on an interval and reports transitions.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	online    bool
	callbacks []func(online bool)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a Monitor. The initial state is offline until the
// first successful probe.
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		stopCh:   make(chan struct{}),
	}
}

// Online reports the last known connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline overrides the connectivity state, firing transition callbacks.
// Used by tests and by contexts without a probe loop.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	fns := append([]func(bool){}, m.callbacks...)
	m.mu.Unlock()

	if !changed {
		return
	}
	logging.Info("connectivity changed", map[string]interface{}{"online": online})
	for _, fn := range fns {
		fn(online)
	}
}

// OnTransition registers a callback fired on every connectivity change.
func (m *Monitor) OnTransition(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Probe performs one immediate probe and updates the state.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.probe(ctx)
	m.SetOnline(online)
	return online
}

// Start launches the probe loop. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
