package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldport/fieldsync/internal/config"
	"github.com/fieldport/fieldsync/internal/connectivity"
	"github.com/fieldport/fieldsync/internal/coordinator"
	"github.com/fieldport/fieldsync/internal/logging"
	"github.com/fieldport/fieldsync/internal/models"
	"github.com/fieldport/fieldsync/internal/portal"
	"github.com/fieldport/fieldsync/internal/store"
	syncpkg "github.com/fieldport/fieldsync/internal/sync"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "fieldsync",
	Short:         "Offline-first capture queue for project photos",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.AddCommand(
		newCaptureCommand(),
		newQueueCommand(),
		newSyncCommand(),
		newProjectsCommand(),
		newStatusCommand(),
		newServeCommand(),
		newInitCommand(),
	)

	logging.Init(os.Stderr, logging.LevelWarn)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.DatabasePath())
}

// syncStack wires the pieces a sync pass needs in the agent context.
type syncStack struct {
	controller *syncpkg.Controller
	monitor    *connectivity.Monitor
	hub        *coordinator.Client
}

// newSyncStack builds a controller against the agent's store handle. The
// hub connection is optional: with the daemon down, broadcasts are dropped
// and sync still works.
func newSyncStack(cfg *config.Config, st *store.Store, onMessage func(models.Message)) *syncStack {
	monitor := connectivity.NewMonitor(cfg.Connectivity.ProbeURL, cfg.ProbeInterval())

	hub, err := coordinator.Dial(cfg.Paths.HubBind, onMessage)
	if err != nil {
		logging.Debug("hub unreachable, broadcasts disabled", map[string]interface{}{"error": err.Error()})
		hub = nil
	}
	var broadcast syncpkg.Broadcaster
	if hub != nil {
		broadcast = hub.Send
	}

	client := portal.NewClient(cfg.Portal.APIBase, cfg.RequestTimeout())
	runner := syncpkg.NewRunner(st, client, broadcast, cfg.ItemDelay())

	controller := syncpkg.NewController(st, runner, monitor.Online)
	controller.UseLease(st, leaseOwner(), cfg.LeaseTTL())

	return &syncStack{controller: controller, monitor: monitor, hub: hub}
}

// dispatch reacts to one hub message in the agent context.
func (s *syncStack) dispatch(ctx context.Context, msg models.Message) {
	switch msg.Type {
	case models.MsgTriggerPhotoSync:
		go s.controller.StartSync(ctx)
	case models.MsgPhotoSyncComplete:
		logging.Info("photos synced", map[string]interface{}{"project": msg.ProjectID()})
	case models.MsgWorkerUpdated:
		logging.Info("background worker updated")
	}
}

func (s *syncStack) close() {
	if s.hub != nil {
		s.hub.Close()
	}
	s.monitor.Stop()
}

func leaseOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "agent"
	}
	return host + "-agent"
}

// shortDuration trims sub-second noise for human output.
func shortDuration(d time.Duration) time.Duration {
	return d.Truncate(time.Millisecond)
}
