package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Runtime is the validated, fully typed form of Config. Resolve is the only
// place raw strings become durations, locations, and clock times; everything
// downstream consumes Runtime and never re-parses.
type Runtime struct {
	StreamerID string
	GatewayURL string
	Location   *time.Location

	StoragePath        string
	StorageBusyTimeout time.Duration

	NotifyDriver      string
	WebhookURL        string
	TelegramToken     string
	TelegramChatID    int64
	NotifyMinInterval time.Duration

	DailyHour, DailyMinute int
	FinalWeekday           time.Weekday
	FinalHour, FinalMinute int
	PollInterval           time.Duration
	TopN                   int

	OfflineRetry time.Duration
	ErrorRetry   time.Duration

	HealthInterval time.Duration
	StaleThreshold time.Duration
	Watchdog       bool
}

// Resolve validates cfg and produces the typed runtime view. Missing
// mandatory values (streamer, sink target, trigger times) are startup errors.
func Resolve(cfg *Config) (*Runtime, error) {
	rt := &Runtime{}

	rt.StreamerID = strings.TrimSpace(cfg.Streamer.UniqueID)
	if rt.StreamerID == "" {
		return nil, fmt.Errorf("config: streamer.unique_id is mandatory")
	}
	rt.GatewayURL = strings.TrimSpace(cfg.Streamer.GatewayURL)
	if rt.GatewayURL == "" {
		return nil, fmt.Errorf("config: streamer.gateway_url is mandatory")
	}

	tz := strings.TrimSpace(cfg.Streamer.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config: streamer.timezone %q: %w", tz, err)
	}
	rt.Location = loc

	rt.StoragePath = strings.TrimSpace(cfg.Storage.Path)
	if rt.StoragePath == "" {
		rt.StoragePath = "./giftboard.sqlite"
	}
	if rt.StorageBusyTimeout, err = parseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second); err != nil {
		return nil, err
	}

	rt.NotifyDriver = strings.ToLower(strings.TrimSpace(cfg.Notify.Driver))
	if rt.NotifyDriver == "" {
		rt.NotifyDriver = "webhook"
	}
	rt.WebhookURL = strings.TrimSpace(cfg.Notify.WebhookURL)
	rt.TelegramToken = strings.TrimSpace(cfg.Notify.TelegramToken)
	rt.TelegramChatID = cfg.Notify.TelegramChatID
	switch rt.NotifyDriver {
	case "webhook":
		if rt.WebhookURL == "" {
			return nil, fmt.Errorf("config: notify.webhook_url is mandatory for the webhook driver")
		}
	case "telegram":
		if rt.TelegramToken == "" || rt.TelegramChatID == 0 {
			return nil, fmt.Errorf("config: notify.telegram_token and notify.telegram_chat_id are mandatory for the telegram driver")
		}
	default:
		return nil, fmt.Errorf("config: notify.driver %q is not supported", rt.NotifyDriver)
	}
	if rt.NotifyMinInterval, err = parseDurationOrDefault("notify.min_interval", cfg.Notify.MinInterval, 2*time.Second); err != nil {
		return nil, err
	}

	if rt.DailyHour, rt.DailyMinute, err = parseHHMM("schedule.daily_post", cfg.Schedule.DailyPost); err != nil {
		return nil, err
	}
	if rt.FinalHour, rt.FinalMinute, err = parseHHMM("schedule.final_post", cfg.Schedule.FinalPost); err != nil {
		return nil, err
	}
	if rt.FinalWeekday, err = parseWeekday("schedule.final_day", cfg.Schedule.FinalDay, time.Sunday); err != nil {
		return nil, err
	}
	if rt.PollInterval, err = parseDurationOrDefault("schedule.poll_interval", cfg.Schedule.PollInterval, 20*time.Second); err != nil {
		return nil, err
	}
	if rt.PollInterval > time.Minute {
		return nil, fmt.Errorf("config: schedule.poll_interval must not exceed 1m or trigger minutes can be missed")
	}
	rt.TopN = cfg.Schedule.TopN
	if rt.TopN <= 0 {
		rt.TopN = 5
	}

	if rt.OfflineRetry, err = parseDurationOrDefault("connection.offline_retry", cfg.Connection.OfflineRetry, 120*time.Second); err != nil {
		return nil, err
	}
	if rt.ErrorRetry, err = parseDurationOrDefault("connection.error_retry", cfg.Connection.ErrorRetry, 60*time.Second); err != nil {
		return nil, err
	}

	if rt.HealthInterval, err = parseDurationOrDefault("health.interval", cfg.Health.Interval, 60*time.Second); err != nil {
		return nil, err
	}
	if rt.StaleThreshold, err = parseDurationOrDefault("health.stale_threshold", cfg.Health.StaleThreshold, 180*time.Second); err != nil {
		return nil, err
	}
	rt.Watchdog = cfg.Health.Watchdog

	return rt, nil
}

func parseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid duration %q: %w", path, raw, err)
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// parseHHMM parses a "HH:MM" wall-clock time.
func parseHHMM(path, raw string) (hour, minute int, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, 0, fmt.Errorf("config: %s is mandatory (expected HH:MM)", path)
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("config: %s: expected HH:MM, got %q", path, raw)
	}
	if hour, err = strconv.Atoi(hh); err != nil {
		return 0, 0, fmt.Errorf("config: %s: expected HH:MM, got %q", path, raw)
	}
	if minute, err = strconv.Atoi(mm); err != nil {
		return 0, 0, fmt.Errorf("config: %s: expected HH:MM, got %q", path, raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("config: %s: %q out of range", path, raw)
	}
	return hour, minute, nil
}

func parseWeekday(path, raw string, def time.Weekday) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return def, nil
	}
	days := map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}
	d, ok := days[s]
	if !ok {
		return 0, fmt.Errorf("config: %s: unknown weekday %q", path, raw)
	}
	return d, nil
}
