package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must be set")
	}
	if c.Paths.CacheDir == "" {
		return fmt.Errorf("paths.cache_dir must be set")
	}
	for name, raw := range map[string]string{
		"portal.origin":          c.Portal.Origin,
		"portal.api_base":        c.Portal.APIBase,
		"connectivity.probe_url": c.Connectivity.ProbeURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
		}
	}
	if c.Sync.ItemDelayMillis < 0 {
		return fmt.Errorf("sync.item_delay_millis must not be negative")
	}
	if c.Sync.LeaseTTLSeconds <= 0 {
		return fmt.Errorf("sync.lease_ttl_seconds must be positive")
	}
	if c.Connectivity.ProbeIntervalSeconds <= 0 {
		return fmt.Errorf("connectivity.probe_interval_seconds must be positive")
	}
	if c.Worker.CacheVersion < 1 {
		return fmt.Errorf("worker.cache_version must be at least 1")
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log_level must be one of DEBUG, INFO, WARN, ERROR")
	}
	return nil
}
