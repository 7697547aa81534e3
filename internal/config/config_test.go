package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

const validYAML = `
telegram:
  token: "123:abc"
announce:
  chat_id: -100200
  style: card
feed:
  channel_id: UCxyz
poll:
  interval_ms: 120000
storage:
  driver: file
  path: ./data/seen.db
`

func TestLoadYAMLWithDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "tubebot.yaml", validYAML))
	m.SetEnv(envMap(nil))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Announce.Driver != "telegram" || cfg.Announce.Style != "card" || cfg.Announce.ChatID != -100200 {
		t.Fatalf("announce: %+v", cfg.Announce)
	}
	d, err := cfg.PollInterval()
	if err != nil || d != 2*time.Minute {
		t.Fatalf("interval=%s err=%v", d, err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level=%q", cfg.Logging.Level)
	}
	if m.Get() != cfg {
		t.Fatal("config not committed")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "tubebot.yaml", validYAML))
	m.SetEnv(envMap(map[string]string{
		"TUBEBOT_TOKEN":              "999:zzz",
		"TUBEBOT_CHAT_ID":            "42",
		"TUBEBOT_YOUTUBE_CHANNEL_ID": "UCenv",
		"TUBEBOT_POLL_INTERVAL":      "90000",
		"TUBEBOT_STORE_PATH":         "/var/lib/tubebot/videos.db",
	}))

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" || cfg.Announce.ChatID != 42 || cfg.Feed.ChannelID != "UCenv" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if d, _ := cfg.PollInterval(); d != 90*time.Second {
		t.Fatalf("interval=%s", d)
	}
	if cfg.Storage.Path != "/var/lib/tubebot/videos.db" {
		t.Fatalf("path=%s", cfg.Storage.Path)
	}
}

func TestEnvOnlyConfig(t *testing.T) {
	t.Parallel()
	m := NewManager("")
	m.SetEnv(envMap(map[string]string{
		"TUBEBOT_WEBHOOK_URL":        "https://discord.example/api/webhooks/1/x",
		"TUBEBOT_YOUTUBE_CHANNEL_ID": "UCenv",
		"TUBEBOT_POLL_INTERVAL":      "10m",
	}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Announce.Driver != "webhook" || cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != DefaultStorePath {
		t.Fatalf("unexpected: %+v %+v", cfg.Announce, cfg.Storage)
	}
}

func TestStrictDecoding(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "tubebot.json", `{"feed":{"channel_id":"x"},"bogus":1}`))
	m.SetEnv(envMap(nil))
	if _, err := m.Load(); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("expected unknown field error, got %v", err)
	}

	m = NewManager(writeFile(t, "tubebot.json", `{"feed":{"channel_id":"x"}}{}`))
	m.SetEnv(envMap(nil))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()
	c := &Config{}
	applyDefaults(c)
	c.Storage.Driver = "postgres"
	c.Metrics = MetricsConfig{Enabled: true, Addr: "0.0.0.0:9464"}

	err := Validate(c)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"feed.channel_id", "telegram.token", "storage.url", "metrics.token"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestAnnounceRateLimitSettings(t *testing.T) {
	t.Parallel()
	cases := []struct {
		yaml string
		want float64
	}{
		{yaml: "", want: 1},
		{yaml: "\n  rate_per_sec: 0", want: 1},
		{yaml: "\n  rate_per_sec: 2.5", want: 2.5},
		{yaml: "\n  rate_per_sec: -1", want: -1},
	}
	for _, tc := range cases {
		body := "announce:\n  driver: log" + tc.yaml + "\nfeed:\n  channel_id: UCxyz\nstorage:\n  driver: memory\n"
		m := NewManager(writeFile(t, "tubebot.yaml", body))
		m.SetEnv(envMap(nil))
		cfg, err := m.Load()
		if err != nil {
			t.Fatalf("%q: load: %v", tc.yaml, err)
		}
		if cfg.Announce.RatePerSec != tc.want {
			t.Fatalf("%q: rate_per_sec=%v want %v", tc.yaml, cfg.Announce.RatePerSec, tc.want)
		}
	}
}

func TestBadEnvValue(t *testing.T) {
	t.Parallel()
	m := NewManager("")
	m.SetEnv(envMap(map[string]string{"TUBEBOT_CHAT_ID": "not-a-number"}))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error")
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "tubebot.yaml", validYAML)
	m := NewManager(path)
	m.SetEnv(envMap(nil))
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	changed, err := m.Reload(context.Background())
	if err != nil || changed {
		t.Fatalf("unchanged reload: changed=%v err=%v", changed, err)
	}

	if err := os.WriteFile(path, []byte(strings.Replace(validYAML, "120000", "300000", 1)), 0o600); err != nil {
		t.Fatal(err)
	}
	changed, err = m.Reload(context.Background())
	if err != nil || !changed {
		t.Fatalf("changed reload: changed=%v err=%v", changed, err)
	}
	select {
	case cfg := <-ch:
		if d, _ := cfg.PollInterval(); d != 5*time.Minute {
			t.Fatalf("published interval=%s", d)
		}
	default:
		t.Fatal("nothing published")
	}

	if err := os.WriteFile(path, []byte("feed: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
	if d, _ := m.Get().PollInterval(); d != 5*time.Minute {
		t.Fatal("bad reload replaced committed config")
	}
}

func TestLoadDotEnvMissingFileIsFine(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
