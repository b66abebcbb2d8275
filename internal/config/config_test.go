package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
streamer:
  unique_id: somestreamer
  gateway_url: wss://gateway.example/ws
  timezone: Europe/Berlin
storage:
  path: ./data/gifts.sqlite
notify:
  webhook_url: https://discord.example/hook
schedule:
  daily_post: "18:00"
  final_post: "20:30"
`

func TestLoadAndResolveYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rt, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if rt.StreamerID != "somestreamer" {
		t.Fatalf("streamer = %q", rt.StreamerID)
	}
	if rt.Location.String() != "Europe/Berlin" {
		t.Fatalf("location = %v", rt.Location)
	}
	if rt.DailyHour != 18 || rt.DailyMinute != 0 {
		t.Fatalf("daily = %d:%d", rt.DailyHour, rt.DailyMinute)
	}
	if rt.FinalHour != 20 || rt.FinalMinute != 30 {
		t.Fatalf("final = %d:%d", rt.FinalHour, rt.FinalMinute)
	}
	if rt.FinalWeekday != time.Sunday {
		t.Fatalf("final weekday = %v", rt.FinalWeekday)
	}
	if rt.PollInterval != 20*time.Second {
		t.Fatalf("poll interval = %v", rt.PollInterval)
	}
	if rt.OfflineRetry != 120*time.Second || rt.ErrorRetry != 60*time.Second {
		t.Fatalf("retry defaults = %v / %v", rt.OfflineRetry, rt.ErrorRetry)
	}
	if rt.TopN != 5 {
		t.Fatalf("top_n = %d", rt.TopN)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "config.yaml", validYAML+"\nsurprise: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("unknown top-level field should be rejected")
	}
}

func TestResolveRequiresStreamer(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", `
streamer:
  gateway_url: wss://gateway.example/ws
notify:
  webhook_url: https://discord.example/hook
schedule:
  daily_post: "18:00"
  final_post: "20:00"
storage: {}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := Resolve(cfg); err == nil {
		t.Fatalf("missing streamer must abort startup")
	}
}

func TestResolveRequiresSinkTarget(t *testing.T) {
	cfg := &Config{}
	cfg.Streamer.UniqueID = "x"
	cfg.Streamer.GatewayURL = "wss://g/ws"
	cfg.Schedule.DailyPost = "18:00"
	cfg.Schedule.FinalPost = "20:00"
	if _, err := Resolve(cfg); err == nil {
		t.Fatalf("webhook driver without url must abort startup")
	}

	cfg.Notify.Driver = "telegram"
	if _, err := Resolve(cfg); err == nil {
		t.Fatalf("telegram driver without token must abort startup")
	}
}

func TestResolveRejectsBadClockTime(t *testing.T) {
	for _, bad := range []string{"25:00", "18:61", "eighteen", "18.00", ""} {
		cfg := &Config{}
		cfg.Streamer.UniqueID = "x"
		cfg.Streamer.GatewayURL = "wss://g/ws"
		cfg.Notify.WebhookURL = "https://h"
		cfg.Schedule.DailyPost = bad
		cfg.Schedule.FinalPost = "20:00"
		if _, err := Resolve(cfg); err == nil {
			t.Errorf("daily_post %q should be rejected", bad)
		}
	}
}

func TestResolveRejectsCoarsePollInterval(t *testing.T) {
	cfg := &Config{}
	cfg.Streamer.UniqueID = "x"
	cfg.Streamer.GatewayURL = "wss://g/ws"
	cfg.Notify.WebhookURL = "https://h"
	cfg.Schedule.DailyPost = "18:00"
	cfg.Schedule.FinalPost = "20:00"
	cfg.Schedule.PollInterval = "90s"
	if _, err := Resolve(cfg); err == nil {
		t.Fatalf("poll interval above one minute should be rejected")
	}
}

func TestEnvOverridesSecret(t *testing.T) {
	t.Setenv("GIFTBOARD_WEBHOOK_URL", "https://override.example/hook")
	cfg, err := Load(writeConfig(t, "config.yaml", validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Notify.WebhookURL != "https://override.example/hook" {
		t.Fatalf("env override not applied: %q", cfg.Notify.WebhookURL)
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := parseWeekday("schedule.final_day", "Sunday", time.Sunday)
	if err != nil || d != time.Sunday {
		t.Fatalf("sunday: %v %v", d, err)
	}
	d, err = parseWeekday("schedule.final_day", "friday", time.Sunday)
	if err != nil || d != time.Friday {
		t.Fatalf("friday: %v %v", d, err)
	}
	if _, err := parseWeekday("schedule.final_day", "someday", time.Sunday); err == nil {
		t.Fatalf("unknown weekday should error")
	}
}
