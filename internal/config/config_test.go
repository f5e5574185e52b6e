package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Worker.OfflineRoute != "/offline" {
		t.Fatalf("expected default offline route, got %q", cfg.Worker.OfflineRoute)
	}
	if cfg.Paths.GatewayBind == "" || cfg.Paths.HubBind == "" {
		t.Fatal("defaults must include bind addresses")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `
log_level = "DEBUG"

[portal]
origin = "https://portal.example.com/"

[sync]
item_delay_millis = 250

[worker]
offline_route = "offline"
build_path_prefix = "/static"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Portal.Origin != "https://portal.example.com" {
		t.Fatalf("origin should be trimmed, got %q", cfg.Portal.Origin)
	}
	if cfg.Worker.OfflineRoute != "/offline" {
		t.Fatalf("offline route should gain leading slash, got %q", cfg.Worker.OfflineRoute)
	}
	if cfg.Worker.BuildPathPrefix != "/static/" {
		t.Fatalf("build prefix should gain trailing slash, got %q", cfg.Worker.BuildPathPrefix)
	}
	if cfg.ItemDelay() != 250*time.Millisecond {
		t.Fatalf("item delay mismatch: %v", cfg.ItemDelay())
	}
	// Keys absent from the file keep their defaults.
	if cfg.Worker.ManifestPath != "/asset-manifest.json" {
		t.Fatalf("manifest path default lost: %q", cfg.Worker.ManifestPath)
	}
}

func TestLoadRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	doc := `
[portal]
origin = "not a url"
`
	os.WriteFile(path, []byte(doc), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("relative portal origin must be rejected")
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cases := []struct {
		name  string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }},
		{"zero lease ttl", func(c *Config) { c.Sync.LeaseTTLSeconds = 0 }},
		{"negative item delay", func(c *Config) { c.Sync.ItemDelayMillis = -1 }},
		{"zero cache version", func(c *Config) { c.Worker.CacheVersion = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("existing config must not be overwritten")
	}

	// The sample itself must parse and validate.
	if _, err := Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestDatabasePathIsSharedUnderDataDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/tmp/fieldsync-data"
	if got := cfg.DatabasePath(); got != filepath.Join("/tmp/fieldsync-data", "fieldsync.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}
