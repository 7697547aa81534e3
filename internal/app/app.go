// Package app wires configuration, storage, the feed fetcher, announcers and
// the scheduler into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tubebot/internal/announce"
	"tubebot/internal/config"
	"tubebot/internal/feed"
	"tubebot/internal/observability/httpserver"
	"tubebot/internal/poller"
	"tubebot/internal/runtime/sdnotify"
	"tubebot/internal/runtime/supervisor"
	"tubebot/internal/scheduler"
	"tubebot/internal/storage"
	"tubebot/internal/transport"
	telegram "tubebot/internal/transport/telegram/adapter"
	logx "tubebot/pkg/logx"
)

type Options struct {
	ConfigPath string
	DotEnv     string
	DryRun     bool
	// Offline skips connecting to the announce destination; announcements
	// go to the log. Used by commands that never announce.
	Offline bool
}

type App struct {
	opts Options

	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	adapter transport.Adapter
	store   storage.SeenStore
	ctrl    *poller.Controller
	sched   *scheduler.Scheduler
	notify  *sdnotify.Notifier

	sup *supervisor.Supervisor
}

// New loads config and builds every component. Failures here (bad config,
// rejected bot token, unreachable store) are fatal to the process.
func New(opts Options) (*App, error) {
	if err := config.LoadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(opts, cfgm, cfg)
}

func build(opts Options, cfgm *config.Manager, cfg *config.Config) (a *App, err error) {
	logCfg := mapLogConfig(cfg)
	// Telegram sink stays off until the adapter exists.
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, root := logx.New(bootCfg, nil)
	log := root.With(logx.String("comp", "app"))
	defer func() {
		if err != nil {
			_ = logSvc.Close()
		}
	}()

	var ad transport.Adapter
	needBot := !opts.Offline && (strings.EqualFold(cfg.Announce.Driver, "telegram") || cfg.Logging.Telegram.Enabled)
	if needBot {
		tcfg, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		tg, err := telegram.New(tcfg, root.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, fmt.Errorf("telegram auth: %w", err)
		}
		ad = tg
		logSvc.SetSender(tg)
		logSvc.Apply(logCfg)
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()

	fc, err := mapFeedConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher := feed.NewHTTPFetcher(fc, root.With(logx.String("comp", "feed")))

	ann, err := buildAnnouncer(cfg, ad, opts.Offline, root)
	if err != nil {
		return nil, err
	}

	ctrl := poller.New(fetcher, store, ann, poller.Options{DryRun: opts.DryRun}, root)

	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}
	sched, err := scheduler.New(ctrl, schedCfg, root)
	if err != nil {
		return nil, err
	}

	log.Info("tubebot configured",
		logx.String("feed", fc.URL),
		logx.String("announce", cfg.Announce.Driver),
		logx.String("store", sc.Driver),
		logx.Bool("dry_run", opts.DryRun),
	)

	cfgm.SetLogger(root.With(logx.String("comp", "config")))
	return &App{
		opts:    opts,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		adapter: ad,
		store:   store,
		ctrl:    ctrl,
		sched:   sched,
		notify:  sdnotify.New(root),
	}, nil
}

func buildAnnouncer(cfg *config.Config, ad transport.Adapter, offline bool, log logx.Logger) (announce.Announcer, error) {
	style, err := announce.ParseStyle(cfg.Announce.Style)
	if err != nil {
		return nil, err
	}
	var ann announce.Announcer
	switch driver := strings.ToLower(cfg.Announce.Driver); {
	case offline || driver == "log":
		ann = announce.NewLog(log)
	case driver == "telegram":
		to := transport.ChatTarget{ChatID: cfg.Announce.ChatID, ThreadID: cfg.Announce.ThreadID}
		if to.ChatID == 0 {
			log.Warn("announce.chat_id is not set; announcements will fail until it is")
		}
		ann = announce.NewTelegram(ad, to, style, log)
	case driver == "webhook":
		ann = announce.NewWebhook(cfg.Announce.WebhookURL, style, nil, log)
	default:
		return nil, fmt.Errorf("unknown announce.driver %q", cfg.Announce.Driver)
	}
	return announce.WithRateLimit(ann, cfg.Announce.RatePerSec, cfg.Announce.Burst), nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed when the app supervisor context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches the scheduler (which seeds the store first), the config
// watcher and, if enabled, the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := mapSchedulerConfig(cfg)
		return err
	})

	a.sched.OnOutcome = func(out poller.Outcome) {
		if out.OK() {
			a.notify.Status(fmt.Sprintf("%d seen, last %s cycle delivered %d", out.After, out.Mode, out.Delivered))
		}
	}

	a.sup.Go("scheduler", a.sched.Run)
	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.RestartPolicy{MaxBackoff: 10 * time.Second})
	a.sup.Go("config.reload", a.reloadLoop)

	if cfg := a.cfgm.Get(); cfg.Metrics.Enabled {
		srv := httpserver.New(mapHTTPConfig(cfg), a.health, a.log)
		a.sup.GoRestart("http", srv.Run, supervisor.RestartPolicy{MinBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second})
	}
	a.sup.Go("sdnotify.watchdog", func(c context.Context) error {
		return a.notify.Watchdog(c, func() bool { return a.sched.Running() })
	})

	a.notify.Ready()
	a.log.Info("tubebot started")
	return nil
}

// Stop stops starting new cycles, waits for the one in flight and releases
// every resource.
func (a *App) Stop(ctx context.Context) error {
	a.notify.Stopping()
	var errs []error
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if a.adapter != nil {
		if err := a.adapter.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	a.log.Info("tubebot stopped")
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunOnce runs a single poll cycle (check) and returns its outcome.
func (a *App) RunOnce(ctx context.Context) poller.Outcome { return a.ctrl.RunCycle(ctx) }

// Seed runs catch-up only.
func (a *App) Seed(ctx context.Context) poller.Outcome { return a.ctrl.CatchUp(ctx) }

// Count returns the number of seen ids.
func (a *App) Count(ctx context.Context) (int64, error) { return a.store.Count(ctx) }

// Close releases resources for one-shot commands that never called Start.
func (a *App) Close() error { return a.Stop(context.Background()) }

func (a *App) health() httpserver.Health {
	h := httpserver.Health{OK: true, Details: map[string]any{}}
	if err := a.sup.Err(); err != nil {
		h.OK = false
		h.Details["supervisor_err"] = err.Error()
	}
	h.Details["scheduler_running"] = a.sched.Running()
	if !a.sched.Running() {
		h.OK = false
	}
	if out, ok := a.sched.Last(); ok {
		h.Details["last_cycle"] = map[string]any{
			"id":        out.CycleID,
			"mode":      string(out.Mode),
			"ok":        out.OK(),
			"delivered": out.Delivered,
			"failed":    out.Failed,
			"count":     out.After,
			"took_ms":   out.Duration.Milliseconds(),
		}
	}
	h.Details["tasks"] = a.sup.Tasks()
	return h
}
