package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("10s", "5m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Announce AnnounceConfig `json:"announce"`
	Feed     FeedConfig     `json:"feed"`
	Poll     PollConfig     `json:"poll"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
}

type TelegramConfig struct {
	Token   string `json:"token"`
	APIURL  string `json:"api_url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

// AnnounceConfig selects where announcements go.
//
// Driver values: "telegram" (default), "webhook", "log".
type AnnounceConfig struct {
	Driver     string  `json:"driver,omitempty"`
	ChatID     int64   `json:"chat_id,omitempty"`
	ThreadID   int     `json:"thread_id,omitempty"`
	WebhookURL string  `json:"webhook_url,omitempty"`
	Style      string  `json:"style,omitempty"` // "text" | "card"
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // 0 = default (1/s), < 0 = unlimited
	Burst      int     `json:"burst,omitempty"`
}

type FeedConfig struct {
	ChannelID      string `json:"channel_id"`
	URL            string `json:"url,omitempty"` // overrides the channel feed URL
	MaxAttempts    int    `json:"max_attempts,omitempty"`
	BaseDelay      string `json:"base_delay,omitempty"`
	TotalTimeLimit string `json:"total_time_limit,omitempty"`
}

// PollConfig controls the scheduler. Interval wins over IntervalMS;
// Schedule (cron or interval grammar) wins over both.
type PollConfig struct {
	Interval    string `json:"interval,omitempty"`
	IntervalMS  int64  `json:"interval_ms,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	SkipCatchUp bool   `json:"skip_catch_up,omitempty"`
}

type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	URL         string `json:"url,omitempty"`
	Key         string `json:"key,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string            `json:"level"`
	Console  *bool             `json:"console,omitempty"`
	File     LogFileConfig     `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir,omitempty"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// MetricsConfig controls the HTTP server exposing /healthz and /metrics.
//
// Binding a non-loopback address requires Token; requests must then carry
// "Authorization: Bearer <token>" (or ?token=) for /metrics and pprof.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
