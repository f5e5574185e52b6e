package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns the built-in configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".local", "share", "fieldsync")

	return &Config{
		Paths: Paths{
			DataDir:     filepath.Join(base, "data"),
			CacheDir:    filepath.Join(base, "cache"),
			LogFile:     filepath.Join(base, "log", "fieldsyncd.log"),
			GatewayBind: "127.0.0.1:8643",
			HubBind:     "127.0.0.1:8644",
		},
		Portal: Portal{
			Origin:         "http://localhost:3000",
			APIBase:        "http://localhost:3000",
			RequestTimeout: 30,
		},
		Sync: Sync{
			ItemDelayMillis: 500,
			LeaseTTLSeconds: 120,
		},
		Connectivity: Connectivity{
			ProbeURL:             "http://localhost:3000/api/health",
			ProbeIntervalSeconds: 15,
		},
		Worker: Worker{
			CacheVersion: 1,
			OfflineRoute: "/offline",
			PrecachePaths: []string{
				"/",
				"/favicon.ico",
				"/manifest.json",
			},
			BuildPathPrefix: "/assets/",
			APIPathPrefix:   "/api/",
			ManifestPath:    "/asset-manifest.json",
		},
		LogLevel: "INFO",
	}
}

// normalize trims and backfills fields a hand-edited file commonly breaks.
func (c *Config) normalize() {
	c.Portal.Origin = strings.TrimRight(strings.TrimSpace(c.Portal.Origin), "/")
	c.Portal.APIBase = strings.TrimRight(strings.TrimSpace(c.Portal.APIBase), "/")
	if c.Portal.APIBase == "" {
		c.Portal.APIBase = c.Portal.Origin
	}
	if c.Connectivity.ProbeURL == "" {
		c.Connectivity.ProbeURL = c.Portal.APIBase + "/api/health"
	}
	if !strings.HasPrefix(c.Worker.OfflineRoute, "/") {
		c.Worker.OfflineRoute = "/" + c.Worker.OfflineRoute
	}
	if !strings.HasSuffix(c.Worker.BuildPathPrefix, "/") {
		c.Worker.BuildPathPrefix += "/"
	}
	if !strings.HasSuffix(c.Worker.APIPathPrefix, "/") {
		c.Worker.APIPathPrefix += "/"
	}
}
