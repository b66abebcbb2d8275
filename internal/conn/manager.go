// Package conn owns the lifecycle of the link to the live-event source:
// connect, classify failures, back off, reconnect. It never gives up; the
// broadcast being offline for hours is the normal case, not an error.
package conn

import (
	"context"
	"time"

	"giftboard/internal/metrics"
	"giftboard/internal/source"
	logx "giftboard/pkg/logx"
)

// Config holds the two operator-tunable retry intervals. The other backoff
// constants (600s cap, 60s floor, 10s duplicate retry) are protocol facts,
// not tunables.
type Config struct {
	// OfflineRetry is the base interval between attempts while the broadcast
	// is offline or after a clean session end.
	OfflineRetry time.Duration
	// ErrorRetry is the fixed interval for unclassified failures.
	ErrorRetry time.Duration
}

// Manager drives the session state machine:
//
//	Idle -> Connecting -> Linked -> (Disconnected | Failed) -> Connecting -> ...
//
// Every attempt starts with a best-effort teardown so stale sessions never
// accumulate upstream.
type Manager struct {
	cfg   Config
	src   source.Source
	state *State
	log   logx.Logger

	explicitLink bool
}

func NewManager(cfg Config, src source.Source, state *State, log logx.Logger) *Manager {
	if cfg.OfflineRetry <= 0 {
		cfg.OfflineRetry = 120 * time.Second
	}
	if cfg.ErrorRetry <= 0 {
		cfg.ErrorRetry = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{cfg: cfg, src: src, state: state, log: log}

	if lo, ok := src.(source.LinkObserver); ok {
		m.explicitLink = true
		lo.SetLinkFunc(func(linked bool) {
			state.setLinked(linked, true)
			if linked {
				// Successful establishment resets backoff to the base interval
				// and starts the stale clock: a session that links up but never
				// delivers a single event must still trip the health monitor's
				// threshold.
				state.setBackoff(m.cfg.OfflineRetry)
				state.TouchEvent(time.Now())
				metrics.LinkUp.Set(1)
			} else {
				metrics.LinkUp.Set(0)
			}
		})
	}
	return m
}

// ExplicitLink reports whether the source signals link state itself. When
// false, the health monitor falls back to the event-recency heuristic.
func (m *Manager) ExplicitLink() bool { return m.explicitLink }

// ForceReconnect tears down the current session without touching backoff
// state. The run loop re-enters Connecting on its own once the blocked
// session call unblocks; there is no synchronous acknowledgement.
func (m *Manager) ForceReconnect() error {
	m.log.Warn("forcing session teardown")
	metrics.ForcedTeardowns.Inc()
	return m.src.Disconnect()
}

// noteImplicitLink resets backoff to the base interval when a source without
// a link callback demonstrably established a session: events arrived after the
// attempt started. Without it, a failure after a long-lived session would
// double from a stale backoff value.
func (m *Manager) noteImplicitLink(attemptAt time.Time) {
	if m.state.Snapshot().LastEventAt.After(attemptAt) {
		m.state.setBackoff(m.cfg.OfflineRetry)
	}
}

// Run is the reconnect loop. It blocks until ctx is canceled.
func (m *Manager) Run(ctx context.Context) error {
	m.state.setBackoff(m.cfg.OfflineRetry)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Tear down any prior session before attempting a new one. Errors are
		// deliberately ignored: the session may already be gone.
		_ = m.src.Disconnect()

		attemptAt := time.Now()
		m.state.noteAttempt(attemptAt)
		m.log.Info("connecting to event source")

		err := m.src.Run(ctx)
		if !m.explicitLink {
			m.state.setLinked(false, false)
			m.noteImplicitLink(attemptAt)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// The link-up callback resets state backoff, so an established session
		// that later fails doubles from the base, not from a stale value.
		class := Classify(err)
		backoff := NextBackoff(class, m.state.Snapshot().Backoff, m.cfg)
		m.state.setBackoff(backoff)
		metrics.Reconnects.WithLabelValues(string(class)).Inc()
		metrics.BackoffSeconds.Set(backoff.Seconds())

		switch class {
		case ClassClean:
			m.log.Info("session ended", logx.Duration("retry_in", backoff))
		case ClassOffline:
			m.log.Info("stream offline", logx.Duration("retry_in", backoff))
		default:
			m.log.Warn("session failed",
				logx.String("class", string(class)),
				logx.Duration("retry_in", backoff),
				logx.Err(err))
		}

		_ = m.src.Disconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}
