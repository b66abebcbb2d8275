// Package sched drives the two leaderboard posts: a daily in-progress
// snapshot and the final post when a week ends. It is a coarse polling loop
// gated by durable markers, so a restart inside a trigger minute never
// double-posts and a missed post is retried on the next matching wake.
package sched

import (
	"context"
	"fmt"
	"time"

	"giftboard/internal/board"
	"giftboard/internal/metrics"
	"giftboard/internal/period"
	"giftboard/internal/storage"
	logx "giftboard/pkg/logx"
)

// Marker keys in the storage key/value table.
const (
	markerInProgressDate = "last_in_progress_post_date"
	markerFinalPeriod    = "last_final_post_period"
)

const dateLayout = "2006-01-02"

// Poster delivers one formatted message synchronously. A returned error means
// the message was not confirmed delivered.
type Poster interface {
	Post(ctx context.Context, content string) error
}

type Config struct {
	// PollInterval must stay at or below one minute so the exact-minute
	// trigger windows cannot be skipped. Default 20s.
	PollInterval time.Duration

	DailyHour   int
	DailyMinute int

	FinalWeekday time.Weekday // default Sunday
	FinalHour    int
	FinalMinute  int

	TopN int
}

type Scheduler struct {
	cfg    Config
	store  *storage.Store
	board  *board.Board
	poster Poster
	loc    *time.Location
	log    logx.Logger

	// now is swappable for tests.
	now func() time.Time

	// fatal surfaces storage errors to the process supervisor.
	fatal func(error)
}

func New(cfg Config, store *storage.Store, b *board.Board, poster Poster, loc *time.Location, log logx.Logger, fatal func(error)) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Second
	}
	if cfg.TopN <= 0 {
		cfg.TopN = board.DefaultTopN
	}
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:    cfg,
		store:  store,
		board:  b,
		poster: poster,
		loc:    loc,
		log:    log,
		now:    time.Now,
		fatal:  fatal,
	}
}

// Run polls until ctx is cancelled. Each wake evaluates both triggers
// independently; both may fire in the same cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick evaluates both triggers against the current wall clock. Exported so
// tests can drive the scheduler without real time.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().In(s.loc)
	id, year, week := period.Current(now)
	start, end := period.Bounds(year, week, s.loc)

	if now.Hour() == s.cfg.DailyHour && now.Minute() == s.cfg.DailyMinute {
		if err := s.postInProgress(ctx, now, id, week, start, end); err != nil {
			s.failStorage(err)
		}
	}
	if now.Weekday() == s.cfg.FinalWeekday && now.Hour() == s.cfg.FinalHour && now.Minute() == s.cfg.FinalMinute {
		if err := s.postFinal(ctx, id, week, start, end); err != nil {
			s.failStorage(err)
		}
	}
}

// postInProgress fires at most once per calendar date, regardless of which
// period is current. A delivery failure leaves the marker untouched so the
// post is retried on the next matching wake.
func (s *Scheduler) postInProgress(ctx context.Context, now time.Time, periodID string, week int, start, end time.Time) error {
	today := now.Format(dateLayout)
	last, err := s.store.GetMarker(ctx, markerInProgressDate, "")
	if err != nil {
		return fmt.Errorf("sched: read in-progress marker: %w", err)
	}
	if last == today {
		return nil
	}

	rows, err := s.board.TopN(ctx, periodID, s.cfg.TopN)
	if err != nil {
		return fmt.Errorf("sched: in-progress top: %w", err)
	}
	msg := board.Format(title(week, start, end, "in progress"), rows)
	if err := s.poster.Post(ctx, msg); err != nil {
		metrics.PostFailures.Inc()
		s.log.Warn("in-progress post failed, will retry",
			logx.String("period", periodID), logx.Err(err))
		return nil
	}
	metrics.PostsSent.WithLabelValues("in_progress").Inc()
	s.log.Info("in-progress leaderboard posted",
		logx.String("period", periodID), logx.String("date", today))

	if err := s.store.SetMarker(ctx, markerInProgressDate, today); err != nil {
		return fmt.Errorf("sched: persist in-progress marker: %w", err)
	}
	return nil
}

// postFinal fires at most once per period id, surviving restarts through the
// durable marker. The snapshot is frozen before posting, so retries after a
// delivery failure always show the same ranks.
func (s *Scheduler) postFinal(ctx context.Context, periodID string, week int, start, end time.Time) error {
	last, err := s.store.GetMarker(ctx, markerFinalPeriod, "")
	if err != nil {
		return fmt.Errorf("sched: read final marker: %w", err)
	}
	if last == periodID {
		return nil
	}

	if err := s.board.Finalize(ctx, periodID); err != nil {
		return fmt.Errorf("sched: finalize: %w", err)
	}
	rows, err := s.board.FinalizedTopN(ctx, periodID)
	if err != nil {
		return fmt.Errorf("sched: finalized top: %w", err)
	}
	msg := board.Format(title(week, start, end, "ended"), rows)
	if err := s.poster.Post(ctx, msg); err != nil {
		metrics.PostFailures.Inc()
		s.log.Warn("final post failed, will retry",
			logx.String("period", periodID), logx.Err(err))
		return nil
	}
	metrics.PostsSent.WithLabelValues("final").Inc()
	s.log.Info("final leaderboard posted", logx.String("period", periodID))

	if err := s.store.SetMarker(ctx, markerFinalPeriod, periodID); err != nil {
		return fmt.Errorf("sched: persist final marker: %w", err)
	}
	return nil
}

func (s *Scheduler) failStorage(err error) {
	s.log.Error("scheduler storage failure", logx.Err(err))
	if s.fatal != nil {
		s.fatal(err)
	}
}

func title(week int, start, end time.Time, suffix string) string {
	return fmt.Sprintf("Week %d - %s to %s - %s",
		week, start.Format("02.01.2006"), end.Format("02.01.2006"), suffix)
}
