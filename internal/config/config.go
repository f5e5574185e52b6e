// Package config loads and validates FieldSync configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	CacheDir    string `toml:"cache_dir"`
	LogFile     string `toml:"log_file"`
	GatewayBind string `toml:"gateway_bind"`
	HubBind     string `toml:"hub_bind"`
}

// Portal contains configuration for the remote portal endpoints.
type Portal struct {
	Origin         string `toml:"origin"`
	APIBase        string `toml:"api_base"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Sync contains configuration for queue draining.
type Sync struct {
	ItemDelayMillis int `toml:"item_delay_millis"`
	LeaseTTLSeconds int `toml:"lease_ttl_seconds"`
}

// Connectivity contains configuration for the online probe.
type Connectivity struct {
	ProbeURL             string `toml:"probe_url"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
}

// Worker contains configuration for the background network worker.
type Worker struct {
	CacheVersion    int      `toml:"cache_version"`
	OfflineRoute    string   `toml:"offline_route"`
	PrecachePaths   []string `toml:"precache_paths"`
	BuildPathPrefix string   `toml:"build_path_prefix"`
	APIPathPrefix   string   `toml:"api_path_prefix"`
	ManifestPath    string   `toml:"manifest_path"`
}

// Config is the root configuration document.
type Config struct {
	Paths        Paths        `toml:"paths"`
	Portal       Portal       `toml:"portal"`
	Sync         Sync         `toml:"sync"`
	Connectivity Connectivity `toml:"connectivity"`
	Worker       Worker       `toml:"worker"`
	LogLevel     string       `toml:"log_level"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fieldsync.toml"
	}
	return filepath.Join(home, ".config", "fieldsync", "config.toml")
}

// Load reads the config file at path, falling back to defaults for any
// missing keys. A missing file yields the defaults with no error; the first
// run writes a sample config instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteSample writes the embedded sample config to path unless one exists.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the data and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if c.Paths.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	return nil
}

// DatabasePath returns the shared queue database location. Both the
// foreground agent and the daemon must resolve the same file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "fieldsync.db")
}

// ItemDelay returns the pause inserted between uploaded items.
func (c *Config) ItemDelay() time.Duration {
	return time.Duration(c.Sync.ItemDelayMillis) * time.Millisecond
}

// LeaseTTL returns the sync lease expiry window.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Sync.LeaseTTLSeconds) * time.Second
}

// ProbeInterval returns the connectivity probe cadence.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.Connectivity.ProbeIntervalSeconds) * time.Second
}

// RequestTimeout returns the portal HTTP client timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Portal.RequestTimeout) * time.Second
}
