// Package maint runs housekeeping on the gift store: a nightly WAL
// checkpoint to keep the sidecar file bounded, and a daily stats line so
// long-running deployments leave a growth trail in the logs.
package maint

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"giftboard/internal/storage"
	logx "giftboard/pkg/logx"
)

type Config struct {
	// CheckpointSpec and StatsSpec are standard 5-field cron expressions,
	// evaluated in the bot's time zone.
	CheckpointSpec string // default "30 4 * * *"
	StatsSpec      string // default "0 6 * * *"
}

type Service struct {
	cfg   Config
	store *storage.Store
	loc   *time.Location
	log   logx.Logger
	cron  *cron.Cron
}

func New(cfg Config, store *storage.Store, loc *time.Location, log logx.Logger) *Service {
	if cfg.CheckpointSpec == "" {
		cfg.CheckpointSpec = "30 4 * * *"
	}
	if cfg.StatsSpec == "" {
		cfg.StatsSpec = "0 6 * * *"
	}
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, loc: loc, log: log}
}

// Start registers the jobs and starts the cron runner. Invalid specs are a
// configuration error and abort startup.
func (s *Service) Start() error {
	c := cron.New(cron.WithLocation(s.loc))

	if _, err := c.AddFunc(s.cfg.CheckpointSpec, s.checkpoint); err != nil {
		return fmt.Errorf("maint: checkpoint spec %q: %w", s.cfg.CheckpointSpec, err)
	}
	if _, err := c.AddFunc(s.cfg.StatsSpec, s.logStats); err != nil {
		return fmt.Errorf("maint: stats spec %q: %w", s.cfg.StatsSpec, err)
	}

	c.Start()
	s.cron = c
	s.log.Info("maintenance jobs scheduled",
		logx.String("checkpoint", s.cfg.CheckpointSpec),
		logx.String("stats", s.cfg.StatsSpec))
	return nil
}

// Stop halts the runner and waits for an in-flight job to finish.
func (s *Service) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Service) checkpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := s.store.Checkpoint(ctx); err != nil {
		s.log.Warn("wal checkpoint failed", logx.Err(err))
		return
	}
	s.log.Info("wal checkpoint", logx.Duration("took", time.Since(start)))
}

func (s *Service) logStats() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := s.store.Stats(ctx)
	if err != nil {
		s.log.Warn("store stats failed", logx.Err(err))
		return
	}
	s.log.Info("store stats",
		logx.Int64("gifts", st.Gifts),
		logx.Int64("periods", st.Periods),
		logx.Int64("snapshots", st.Snapshots))
}
