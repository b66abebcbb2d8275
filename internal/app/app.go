// Package app wires the components together: config, logging, storage, the
// event source link, the scheduler, and the supporting services. It owns
// startup order and shutdown order; the components themselves stay ignorant
// of each other beyond their direct dependencies.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"giftboard/internal/board"
	"giftboard/internal/config"
	"giftboard/internal/conn"
	"giftboard/internal/health"
	"giftboard/internal/ingest"
	"giftboard/internal/maint"
	"giftboard/internal/notify"
	"giftboard/internal/ops"
	"giftboard/internal/runtime/supervisor"
	"giftboard/internal/sched"
	"giftboard/internal/source"
	"giftboard/internal/storage"
	logx "giftboard/pkg/logx"
)

type App struct {
	cfgPath string
	rt      *config.Runtime

	log  logx.Logger
	logs *logx.Service
	sup  *supervisor.Supervisor

	store   *storage.Store
	state   *conn.State
	src     *source.WebcastClient
	mgr     *conn.Manager
	ingest  *ingest.Ingestor
	sched   *sched.Scheduler
	monitor *health.Monitor
	maint   *maint.Service
	ops     *ops.Server
	watcher *config.Watcher
}

// New loads and validates configuration and constructs every component.
// Nothing is running yet when New returns.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	rt, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logging.Logx())
	log = log.With(logx.String("comp", "app"))

	store, err := storage.Open(storage.Config{
		Path:        rt.StoragePath,
		BusyTimeout: rt.StorageBusyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	poster, err := notify.New(notify.Config{
		Driver:         rt.NotifyDriver,
		WebhookURL:     rt.WebhookURL,
		TelegramToken:  rt.TelegramToken,
		TelegramChatID: rt.TelegramChatID,
		MinInterval:    rt.NotifyMinInterval,
	}, log.With(logx.String("comp", "notify")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		cfgPath: cfgPath,
		rt:      rt,
		log:     log,
		logs:    logSvc,
		store:   store,
		state:   conn.NewState(),
	}

	// fatal routes unrecoverable storage errors to the supervisor once
	// Start has created it. Recording the error and cancelling brings the
	// whole process down rather than limping on with inconsistent state.
	fatal := func(err error) {
		if a.sup != nil {
			a.sup.SetErr(err)
			a.sup.Cancel()
		}
	}

	a.ingest = ingest.New(store, a.state, rt.Location, log.With(logx.String("comp", "ingest")), fatal)

	a.src, err = source.NewWebcastClient(source.WebcastConfig{
		GatewayURL: rt.GatewayURL,
		Streamer:   rt.StreamerID,
	}, a.ingest.HandleGift, log.With(logx.String("comp", "source")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a.mgr = conn.NewManager(conn.Config{
		OfflineRetry: rt.OfflineRetry,
		ErrorRetry:   rt.ErrorRetry,
	}, a.src, a.state, log.With(logx.String("comp", "conn")))

	a.sched = sched.New(sched.Config{
		PollInterval: rt.PollInterval,
		DailyHour:    rt.DailyHour,
		DailyMinute:  rt.DailyMinute,
		FinalWeekday: rt.FinalWeekday,
		FinalHour:    rt.FinalHour,
		FinalMinute:  rt.FinalMinute,
		TopN:         rt.TopN,
	}, store, board.New(store), poster, rt.Location, log.With(logx.String("comp", "sched")), fatal)

	a.monitor = health.New(health.Config{
		Interval:       rt.HealthInterval,
		StaleThreshold: rt.StaleThreshold,
		Watchdog:       rt.Watchdog,
	}, a.mgr, a.state, log.With(logx.String("comp", "health")))

	a.maint = maint.New(maint.Config{
		CheckpointSpec: cfg.Maintenance.CheckpointSpec,
		StatsSpec:      cfg.Maintenance.StatsSpec,
	}, store, rt.Location, log.With(logx.String("comp", "maint")))

	a.ops = ops.New(ops.Config{
		Enabled:       cfg.Ops.Enabled,
		Addr:          cfg.Ops.Addr,
		AllowInsecure: cfg.Ops.AllowInsecure,
	}, a.state, func() int64 {
		if a.sup == nil {
			return 0
		}
		return a.sup.Active()
	}, log.With(logx.String("comp", "ops")))

	// Hot reload applies logging changes only; everything else needs a
	// restart and is deliberately ignored.
	a.watcher = config.NewWatcher(cfgPath, log.With(logx.String("comp", "config")), func(next *config.Config) {
		logSvc.Apply(next.Logging.Logx())
		log.Info("logging config applied; other changes take effect on restart")
	})

	return a, nil
}

// Start launches all long-lived loops under one supervisor. A fatal error in
// any of them cancels the supervisor context; callers watch Done().
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	if err := a.maint.Start(); err != nil {
		return err
	}

	a.sup.GoRestart("conn.run", a.mgr.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.GoRestart("sched.run", a.sched.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.GoRestart("health.run", a.monitor.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))
	a.sup.GoRestart("ops.serve", a.ops.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
		supervisor.WithStopOnCleanExit(true),
		supervisor.WithPublishFirstError(true))
	a.sup.GoRestart("config.watch", a.watcher.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("giftboard started",
		logx.String("streamer", a.rt.StreamerID),
		logx.String("tz", a.rt.Location.String()))
	return nil
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts everything down in dependency order: loops first, then the
// cron runner, then storage and logging.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.sup != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_ = a.sup.Stop(waitCtx)
		cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	a.maint.Stop(stopCtx)
	cancel()

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("giftboard stopped")
	return a.logs.Close()
}
