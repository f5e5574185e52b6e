// Package worker implements the background network worker: a process
// independent of any foreground agent that precaches the portal's static
// surface, fronts it with a caching gateway, reacts to connectivity
// restoration by triggering or performing a sync, and surfaces push
// notifications.
package worker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fieldport/fieldsync/internal/config"
	"github.com/fieldport/fieldsync/internal/coordinator"
	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/store"
	syncpkg "github.com/fieldport/fieldsync/internal/sync"
	"github.com/fieldport/fieldsync/internal/webcache"
)

// State is the worker's lifecycle phase, driven by the daemon bootstrap.
type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActivating State = "activating"
	StateActive     State = "active"
)

// Worker coordinates the cache, the gateway, and the fallback sync path.
type Worker struct {
	cfg      *config.Config
	store    *store.Store
	cache    *webcache.Cache
	hub      *coordinator.Hub
	runner   *syncpkg.Runner
	online   func() bool
	notifier Notifier
	client   *http.Client

	mu    sync.Mutex
	state State
}

// New creates a Worker. The runner must be built against the worker's own
// store handle; it cannot share in-process state with a foreground engine.
func New(cfg *config.Config, st *store.Store, cache *webcache.Cache, hub *coordinator.Hub,
	runner *syncpkg.Runner, online func() bool, notifier Notifier) *Worker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Worker{
		cfg:      cfg,
		store:    st,
		cache:    cache,
		hub:      hub,
		runner:   runner,
		online:   online,
		notifier: notifier,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		state: StateInstalling,
	}
}

// State returns the current lifecycle phase.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	logging.Info("worker state", map[string]interface{}{"state": string(s)})
}

// Install runs the precache pass: the fixed static path list, the offline
// fallback route, and the fallback route's build-asset dependencies. The
// pass is best-effort; a missing fallback page degrades to lazy caching on
// first visit and never fails installation.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	for _, path := range w.cfg.Worker.PrecachePaths {
		if err := w.fetchAndCache(ctx, path, true); err != nil {
			logging.Warn("precache path failed", map[string]interface{}{"path": path, "error": err.Error()})
		}
	}

	cached, total, err := w.precacheOfflinePage(ctx)
	if err != nil {
		logging.Warn("offline page unavailable at install, caching lazily on first visit",
			map[string]interface{}{"route": w.cfg.Worker.OfflineRoute, "error": err.Error()})
	} else if w.hub != nil {
		w.hub.Broadcast(models.OfflineReady(cached, total))
	}

	w.setState(StateWaiting)
	return nil
}

// Activate prunes the caches of previous worker versions and announces the
// takeover to open contexts.
func (w *Worker) Activate(ctx context.Context) error {
	w.setState(StateActivating)

	if err := w.cache.PruneOtherVersions(); err != nil {
		logging.Warn("prune old caches", map[string]interface{}{"error": err.Error()})
	}
	if w.hub != nil {
		w.hub.Broadcast(models.NewMessage(models.MsgWorkerUpdated, nil))
	}

	w.setState(StateActive)
	return nil
}

// HandleOnline is the connectivity-restoration reaction for the
// "photo-upload" background-sync tag. A connected foreground agent is asked
// to run the sync itself; with no agent open the worker drains the queue
// from its own context. Nothing escapes this handler.
func (w *Worker) HandleOnline(ctx context.Context) {
	if w.hub != nil && w.hub.ClientCount() > 0 {
		logging.Info("connectivity restored, delegating sync to foreground agent")
		w.hub.Broadcast(models.NewMessage(models.MsgTriggerPhotoSync, nil))
		return
	}
	w.fallbackSync(ctx)
}

// fallbackSync replays the upload protocol from the worker context. Failures
// of any kind are swallowed; the next connectivity signal retries.
func (w *Worker) fallbackSync(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("fallback sync panicked", nil, map[string]interface{}{"panic": r})
		}
	}()

	ok, err := w.store.AcquireLease(ctx, syncpkg.LeaseName, "worker", w.cfg.LeaseTTL())
	if err != nil {
		logging.Error("fallback sync lease", err)
		return
	}
	if !ok {
		logging.Debug("sync lease held elsewhere, skipping fallback pass")
		return
	}
	defer w.store.ReleaseLease(context.WithoutCancel(ctx), syncpkg.LeaseName, "worker")

	logging.Info("no foreground agent connected, running fallback sync")
	// Renew the lease between items so a long drain keeps its claim.
	stats := w.runner.Drain(ctx, w.online, func() {
		w.store.AcquireLease(ctx, syncpkg.LeaseName, "worker", w.cfg.LeaseTTL())
	})
	logging.Info("fallback sync finished", map[string]interface{}{
		"attempted": stats.Attempted,
		"delivered": stats.Delivered,
		"failed":    stats.Failed,
		"aborted":   stats.Aborted,
	})
}
