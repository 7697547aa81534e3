package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate reports every problem in c at once.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Feed.ChannelID) == "" && strings.TrimSpace(c.Feed.URL) == "" {
		add("feed.channel_id is required")
	}
	if c.Feed.MaxAttempts < 0 {
		add("feed.max_attempts must be >= 0")
	}
	for path, raw := range map[string]string{
		"feed.base_delay":       c.Feed.BaseDelay,
		"feed.total_time_limit": c.Feed.TotalTimeLimit,
		"telegram.timeout":      c.Telegram.Timeout,
		"storage.busy_timeout":  c.Storage.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	d, err := c.PollInterval()
	switch {
	case err != nil:
		errs = append(errs, err)
	case d <= 0 && strings.TrimSpace(c.Poll.Schedule) == "":
		add("poll.interval, poll.interval_ms or poll.schedule is required")
	}

	switch strings.ToLower(c.Announce.Driver) {
	case "telegram":
		if strings.TrimSpace(c.Telegram.Token) == "" {
			add("telegram.token is required for announce.driver=telegram")
		}
	case "webhook", "log":
	default:
		add("announce.driver: unknown value %q", c.Announce.Driver)
	}
	switch c.Announce.Style {
	case "text", "card":
	default:
		add("announce.style: unknown value %q", c.Announce.Style)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "sqlite3", "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			add("storage.path is required for storage.driver=%s", c.Storage.Driver)
		}
	case "postgres", "postgresql", "pgx", "redis":
		if strings.TrimSpace(c.Storage.URL) == "" {
			add("storage.url is required for storage.driver=%s", c.Storage.Driver)
		}
	case "memory", "mem":
	default:
		add("storage.driver: unknown value %q", c.Storage.Driver)
	}

	if c.Logging.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			add("logging.telegram requires telegram.token")
		}
		if c.Logging.Telegram.ChatID == 0 {
			add("logging.telegram.chat_id is required when logging.telegram.enabled")
		}
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			add("metrics.addr: %v", err)
		} else if c.Metrics.Token == "" && !IsLoopbackAddr(c.Metrics.Addr) {
			add("metrics.addr %q is not loopback; metrics.token is required", c.Metrics.Addr)
		}
	}

	return errors.Join(errs...)
}

// IsLoopbackAddr reports whether host:port binds only to loopback.
func IsLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
