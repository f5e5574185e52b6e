package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/fieldport/fieldsync/internal/config"
	"github.com/fieldport/fieldsync/internal/connectivity"
	"github.com/fieldport/fieldsync/internal/coordinator"
	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/portal"
	"github.com/fieldport/fieldsync/internal/store"
	syncpkg "github.com/fieldport/fieldsync/internal/sync"
	"github.com/fieldport/fieldsync/internal/telemetry"
	"github.com/fieldport/fieldsync/internal/webcache"
	"github.com/fieldport/fieldsync/internal/worker"
)

func run(cfg *config.Config) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if cfg.Paths.LogFile != "" {
		logging.InitFile(cfg.Paths.LogFile, logging.LogLevel(cfg.LogLevel))
	} else {
		logging.Init(os.Stderr, logging.LogLevel(cfg.LogLevel))
	}

	// One daemon per data directory; a second instance exits immediately.
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "fieldsyncd.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another fieldsyncd is already running for %s", cfg.Paths.DataDir)
	}
	defer lock.Unlock()

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	cache, err := webcache.Open(cfg.Paths.CacheDir, "static", cfg.Worker.CacheVersion)
	if err != nil {
		return err
	}

	hub := coordinator.NewHub()
	monitor := connectivity.NewMonitor(cfg.Connectivity.ProbeURL, cfg.ProbeInterval())

	client := portal.NewClient(cfg.Portal.APIBase, cfg.RequestTimeout())
	runner := syncpkg.NewRunner(st, client, hub.Broadcast, cfg.ItemDelay())

	w := worker.New(cfg, st, cache, hub, runner, monitor.Online, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Lifecycle is host-driven: install, then activate, then serve.
	if err := w.Install(ctx); err != nil {
		return err
	}
	if err := w.Activate(ctx); err != nil {
		return err
	}

	monitor.OnTransition(func(online bool) {
		if online {
			go w.HandleOnline(ctx)
		}
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	gateway := &http.Server{Addr: cfg.Paths.GatewayBind, Handler: w}

	control := http.NewServeMux()
	control.Handle("/ws", hub)
	control.HandleFunc("/push", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload, _ := io.ReadAll(r.Body)
		w.HandlePush(payload)
		rw.WriteHeader(http.StatusNoContent)
	})
	control.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(rw, `{"state":%q,"online":%t,"counters":{"delivered":%d,"cache_hits":%d}}`,
			w.State(), monitor.Online(),
			telemetry.Value(telemetry.CounterCapturesDelivered),
			telemetry.Value(telemetry.CounterCacheHits))
	})
	controlSrv := &http.Server{Addr: cfg.Paths.HubBind, Handler: control}

	errCh := make(chan error, 2)
	go func() { errCh <- gateway.ListenAndServe() }()
	go func() { errCh <- controlSrv.ListenAndServe() }()

	logging.Info("fieldsyncd running", map[string]interface{}{
		"gateway": cfg.Paths.GatewayBind,
		"hub":     cfg.Paths.HubBind,
	})

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	gateway.Shutdown(shutdownCtx)
	controlSrv.Shutdown(shutdownCtx)
	return nil
}
