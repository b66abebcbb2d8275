package config

import (
	logx "giftboard/pkg/logx"
)

// Config is the full configuration surface. Durations are Go duration
// strings ("20s", "3m"); clock-of-day fields are "HH:MM" in the configured
// time zone. Secrets (webhook URL, bot token) can come from the environment
// instead of the file; env always wins.
type Config struct {
	Streamer    StreamerConfig    `json:"streamer"`
	Storage     StorageConfig     `json:"storage"`
	Notify      NotifyConfig      `json:"notify"`
	Schedule    ScheduleConfig    `json:"schedule"`
	Connection  ConnectionConfig  `json:"connection,omitempty"`
	Health      HealthConfig      `json:"health,omitempty"`
	Maintenance MaintenanceConfig `json:"maintenance,omitempty"`
	Logging     LoggingConfig     `json:"logging,omitempty"`
	Ops         OpsConfig         `json:"ops,omitempty"`
}

type StreamerConfig struct {
	// UniqueID is the broadcaster handle to follow. Mandatory.
	UniqueID string `json:"unique_id" env:"GIFTBOARD_STREAMER"`
	// GatewayURL is the websocket endpoint of the live-event gateway.
	GatewayURL string `json:"gateway_url" env:"GIFTBOARD_GATEWAY_URL"`
	// Timezone names the zone that defines calendar weeks and trigger
	// times, e.g. "Europe/Berlin". Default "UTC".
	Timezone string `json:"timezone"`
}

type StorageConfig struct {
	Path        string `json:"path"`                   // default "./giftboard.sqlite"
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type NotifyConfig struct {
	Driver         string `json:"driver"` // "webhook" (default) or "telegram"
	WebhookURL     string `json:"webhook_url,omitempty" env:"GIFTBOARD_WEBHOOK_URL"`
	TelegramToken  string `json:"telegram_token,omitempty" env:"GIFTBOARD_TELEGRAM_TOKEN"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty" env:"GIFTBOARD_TELEGRAM_CHAT_ID"`
	MinInterval    string `json:"min_interval,omitempty"`
}

type ScheduleConfig struct {
	// DailyPost is the local time of the daily in-progress post, "HH:MM".
	DailyPost string `json:"daily_post"`
	// FinalDay is the weekday of the final post, e.g. "sunday".
	FinalDay string `json:"final_day,omitempty"`
	// FinalPost is the local time of the final post, "HH:MM".
	FinalPost    string `json:"final_post"`
	PollInterval string `json:"poll_interval,omitempty"` // default "20s"
	TopN         int    `json:"top_n,omitempty"`         // default 5
}

type ConnectionConfig struct {
	OfflineRetry string `json:"offline_retry,omitempty"` // default "120s"
	ErrorRetry   string `json:"error_retry,omitempty"`   // default "60s"
}

type HealthConfig struct {
	Interval       string `json:"interval,omitempty"`        // default "60s"
	StaleThreshold string `json:"stale_threshold,omitempty"` // default "180s"
	Watchdog       bool   `json:"watchdog,omitempty"`
}

type MaintenanceConfig struct {
	CheckpointSpec string `json:"checkpoint_spec,omitempty"` // cron, default "30 4 * * *"
	StatsSpec      string `json:"stats_spec,omitempty"`      // cron, default "0 6 * * *"
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console *bool       `json:"console,omitempty"` // default true
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default "127.0.0.1:8090"
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

// Logx maps the logging section onto the logger service config.
func (c LoggingConfig) Logx() logx.Config {
	console := true
	if c.Console != nil {
		console = *c.Console
	}
	return logx.Config{
		Level:   c.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}
