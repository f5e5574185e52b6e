package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
)

// Status is the controller's externally visible state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
)

// Controller is the foreground sync engine: a constructed object holding the
// observer list and single-flight flag, so several controllers can coexist
// in tests. The flag is process-local; cross-context exclusion comes from
// the store lease.
type Controller struct {
	queue  Queue
	runner *Runner
	online func() bool

	inFlight atomic.Bool

	leaser   Leaser
	owner    string
	leaseTTL time.Duration

	mu        sync.Mutex
	status    Status
	listeners map[int]func(Status)
	nextID    int
}

// NewController creates a Controller. online reports current connectivity;
// a nil online is treated as always connected.
func NewController(queue Queue, runner *Runner, online func() bool) *Controller {
	return &Controller{
		queue:     queue,
		runner:    runner,
		online:    online,
		status:    StatusIdle,
		listeners: make(map[int]func(Status)),
	}
}

// UseLease enables the cross-context queue lease for this controller.
func (c *Controller) UseLease(l Leaser, owner string, ttl time.Duration) {
	c.leaser = l
	c.owner = owner
	c.leaseTTL = ttl
}

// Subscribe registers an observer and returns its unsubscribe func.
// Observers run synchronously on the syncing goroutine.
func (c *Controller) Subscribe(fn func(Status)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Status returns the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Syncing reports whether a pass is in flight.
func (c *Controller) Syncing() bool {
	return c.inFlight.Load()
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	c.mu.Lock()
	status := c.status
	fns := make([]func(Status), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(status)
	}
}

// StartSync drains the queue once. It returns immediately, reporting false,
// when a pass is already running or the device is offline: at most one
// concurrent pass per process, and zero network calls while offline. The
// guard makes the entry point safe to call from every trigger path (user
// action, online transition, worker message).
func (c *Controller) StartSync(ctx context.Context) bool {
	if c.online != nil && !c.online() {
		return false
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer c.inFlight.Store(false)

	if c.leaser != nil {
		ok, err := c.leaser.AcquireLease(ctx, LeaseName, c.owner, c.leaseTTL)
		if err != nil {
			logging.Error("acquire sync lease", err)
			return false
		}
		if !ok {
			// Another context is draining; its pass covers our records.
			logging.Debug("sync lease held elsewhere, skipping pass")
			return false
		}
		defer c.leaser.ReleaseLease(context.WithoutCancel(ctx), LeaseName, c.owner)
	}

	c.setStatus(StatusSyncing)
	defer c.setStatus(StatusIdle)

	// The holder may re-acquire its own lease, so renewing between items
	// keeps a drain longer than the TTL from losing the lease mid-pass.
	onChange := c.notify
	if c.leaser != nil {
		onChange = func() {
			c.notify()
			if _, err := c.leaser.AcquireLease(ctx, LeaseName, c.owner, c.leaseTTL); err != nil {
				logging.Error("renew sync lease", err)
			}
		}
	}

	stats := c.runner.Drain(ctx, c.online, onChange)
	logging.Info("sync pass finished", map[string]interface{}{
		"attempted": stats.Attempted,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
		"aborted":   stats.Aborted,
	})
	return true
}

// RetryPhoto resets a capture to pending with a zero retry count and, when
// online, runs a sync pass before returning. The result reports whether a
// pass was actually triggered.
func (c *Controller) RetryPhoto(ctx context.Context, id int64) (bool, error) {
	zero := 0
	if err := c.queue.SetStatus(ctx, id, models.CaptureStatusPending, &zero); err != nil {
		return false, err
	}
	c.notify()

	if c.online != nil && !c.online() {
		return false, nil
	}
	return c.StartSync(ctx), nil
}
