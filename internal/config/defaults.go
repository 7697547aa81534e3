package config

import "strings"

const (
	DefaultInterval   = "5m"
	DefaultStorePath  = "./data/videos.db"
	DefaultMetricsAdr = "127.0.0.1:9464"
)

// applyDefaults fills zero values in place.
func applyDefaults(c *Config) {
	if strings.TrimSpace(c.Announce.Driver) == "" {
		c.Announce.Driver = "telegram"
	}
	if strings.TrimSpace(c.Announce.Style) == "" {
		c.Announce.Style = "text"
	}
	if c.Announce.RatePerSec == 0 {
		c.Announce.RatePerSec = 1
	}
	if c.Announce.Burst <= 0 {
		c.Announce.Burst = 3
	}
	if strings.TrimSpace(c.Poll.Interval) == "" && c.Poll.IntervalMS <= 0 && strings.TrimSpace(c.Poll.Schedule) == "" {
		c.Poll.Interval = DefaultInterval
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "sqlite"
	}
	switch c.Storage.Driver {
	case "sqlite", "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			c.Storage.Path = DefaultStorePath
		}
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		c.Metrics.Addr = DefaultMetricsAdr
	}
}
