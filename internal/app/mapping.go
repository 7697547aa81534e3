package app

import (
	"fmt"
	"strings"
	"time"

	"tubebot/internal/config"
	"tubebot/internal/feed"
	"tubebot/internal/observability/httpserver"
	"tubebot/internal/scheduler"
	"tubebot/internal/storage"
	telegram "tubebot/internal/transport/telegram/adapter"
	logx "tubebot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	console := true
	if cfg.Logging.Console != nil {
		console = *cfg.Logging.Console
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Dir:     cfg.Logging.File.Dir,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.timeout", cfg.Telegram.Timeout, 15*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, APIURL: cfg.Telegram.APIURL, Timeout: timeout}, nil
}

func mapFeedConfig(cfg *config.Config) (feed.Config, error) {
	base, err := config.ParseDurationOrDefault("feed.base_delay", cfg.Feed.BaseDelay, feed.DefaultBaseDelay)
	if err != nil {
		return feed.Config{}, err
	}
	limit, err := config.ParseDurationOrDefault("feed.total_time_limit", cfg.Feed.TotalTimeLimit, feed.DefaultTotalTimeLimit)
	if err != nil {
		return feed.Config{}, err
	}
	url := strings.TrimSpace(cfg.Feed.URL)
	if url == "" {
		url = feed.ChannelFeedURL(strings.TrimSpace(cfg.Feed.ChannelID))
	}
	return feed.Config{
		URL:            url,
		MaxAttempts:    cfg.Feed.MaxAttempts,
		BaseDelay:      base,
		TotalTimeLimit: limit,
	}, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        strings.TrimSpace(cfg.Storage.Path),
		URL:         strings.TrimSpace(cfg.Storage.URL),
		Key:         strings.TrimSpace(cfg.Storage.Key),
		BusyTimeout: busy,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	d, err := cfg.PollInterval()
	if err != nil {
		return scheduler.Config{}, err
	}
	sc := scheduler.Config{
		Interval:    d,
		Schedule:    strings.TrimSpace(cfg.Poll.Schedule),
		Timezone:    strings.TrimSpace(cfg.Poll.Timezone),
		SkipCatchUp: cfg.Poll.SkipCatchUp,
	}
	if sc.Schedule != "" {
		if _, err := scheduler.ParseSchedule(sc.Schedule); err != nil {
			return scheduler.Config{}, fmt.Errorf("poll.schedule: %w", err)
		}
	}
	if sc.Timezone != "" {
		if _, err := time.LoadLocation(sc.Timezone); err != nil {
			return scheduler.Config{}, fmt.Errorf("poll.timezone: invalid %q: %w", sc.Timezone, err)
		}
	}
	return sc, nil
}

func mapHTTPConfig(cfg *config.Config) httpserver.Config {
	return httpserver.Config{
		Addr:  cfg.Metrics.Addr,
		Token: cfg.Metrics.Token,
		Pprof: cfg.Metrics.Pprof,
	}
}
