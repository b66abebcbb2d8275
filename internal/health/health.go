// Package health watches the link for silent stalls: a session that stays
// open but stops delivering events. It forces a teardown when event recency
// crosses the stale threshold, letting the connection manager re-enter its
// normal reconnect path without touching the backoff.
package health

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"giftboard/internal/conn"
	"giftboard/internal/metrics"
	logx "giftboard/pkg/logx"
)

// recentWindow is the recency fallback: with no explicit link signal from the
// source, an event in the last few seconds is the best available evidence the
// link is up. Best-effort only.
const recentWindow = 10 * time.Second

type Config struct {
	Interval       time.Duration // default 60s
	StaleThreshold time.Duration // default 180s
	// Watchdog enables sd_notify keepalives when running under systemd.
	Watchdog bool
}

type Monitor struct {
	cfg   Config
	mgr   *conn.Manager
	state *conn.State
	log   logx.Logger

	now func() time.Time
}

func New(cfg Config, mgr *conn.Manager, state *conn.State, log logx.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 180 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{cfg: cfg, mgr: mgr, state: state, log: log, now: time.Now}
}

// Run checks link health until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check()
			if m.cfg.Watchdog {
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}
}

// Check inspects link state and event recency once.
func (m *Monitor) Check() {
	now := m.now()
	snap := m.state.Snapshot()

	linked := snap.Linked
	if !m.mgr.ExplicitLink() {
		// Recency fallback for sources without a link callback.
		linked = !snap.LastEventAt.IsZero() && now.Sub(snap.LastEventAt) < recentWindow
	}

	var sinceEvent time.Duration
	if !snap.LastEventAt.IsZero() {
		sinceEvent = now.Sub(snap.LastEventAt)
		metrics.LastEventAge.Set(sinceEvent.Seconds())
	}
	m.log.Info("link health",
		logx.Bool("linked", linked),
		logx.Duration("since_last_event", sinceEvent),
		logx.Duration("backoff", snap.Backoff))

	if linked && !snap.LastEventAt.IsZero() && sinceEvent > m.cfg.StaleThreshold {
		m.log.Warn("link stalled, forcing reconnect",
			logx.Duration("since_last_event", sinceEvent),
			logx.Duration("threshold", m.cfg.StaleThreshold))
		if err := m.mgr.ForceReconnect(); err != nil {
			m.log.Warn("forced teardown failed", logx.Err(err))
		}
	}
}
