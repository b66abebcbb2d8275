// Package metrics exposes the bot's Prometheus collectors.
//
// Collectors are package-level so components can record without threading a
// registry through every constructor. They are registered on the default
// registry; the ops server serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GiftsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftboard_gifts_ingested_total",
		Help: "Gift events newly persisted (excludes replays).",
	})

	GiftsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftboard_gifts_deduplicated_total",
		Help: "Gift callbacks collapsed onto an existing row.",
	})

	IngestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftboard_ingest_errors_total",
		Help: "Gift callbacks that failed to persist.",
	})

	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftboard_reconnects_total",
		Help: "Session ends by classification (offline, upstream, duplicate, generic, clean).",
	}, []string{"class"})

	LinkUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "giftboard_link_up",
		Help: "1 while the event source session is established.",
	})

	BackoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "giftboard_backoff_seconds",
		Help: "Current reconnect backoff.",
	})

	LastEventAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "giftboard_last_event_age_seconds",
		Help: "Seconds since the last gift callback, sampled by the health monitor.",
	})

	PostsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftboard_posts_sent_total",
		Help: "Leaderboard posts delivered, by kind (in_progress, final).",
	}, []string{"kind"})

	PostFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftboard_post_failures_total",
		Help: "Leaderboard post attempts that failed delivery.",
	})

	ForcedTeardowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftboard_forced_teardowns_total",
		Help: "Sessions torn down by the health monitor for staleness.",
	})
)
