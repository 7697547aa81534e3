package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "TUBEBOT_"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays TUBEBOT_* variables onto c.
func applyEnv(c *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) (string, bool) {
		v := strings.TrimSpace(getenv(envPrefix + k))
		return v, v != ""
	}

	if v, ok := get("TOKEN"); ok {
		c.Telegram.Token = v
	}
	if v, ok := get("CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sCHAT_ID: %w", envPrefix, err)
		}
		c.Announce.ChatID = id
	}
	if v, ok := get("THREAD_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTHREAD_ID: %w", envPrefix, err)
		}
		c.Announce.ThreadID = id
	}
	if v, ok := get("YOUTUBE_CHANNEL_ID"); ok {
		c.Feed.ChannelID = v
	}
	if v, ok := get("POLL_INTERVAL"); ok {
		// Bare integers are milliseconds.
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Poll.Interval = ""
			c.Poll.IntervalMS = ms
		} else {
			c.Poll.Interval = v
		}
	}
	if v, ok := get("STORE_PATH"); ok {
		c.Storage.Path = v
	}
	if v, ok := get("STORE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := get("STORE_URL"); ok {
		c.Storage.URL = v
	}
	if v, ok := get("WEBHOOK_URL"); ok {
		c.Announce.WebhookURL = v
		if strings.TrimSpace(c.Announce.Driver) == "" {
			c.Announce.Driver = "webhook"
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}
