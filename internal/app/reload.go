package app

import (
	"context"

	"tubebot/internal/config"
	logx "tubebot/pkg/logx"
)

// reloadLoop applies hot-reloadable settings: logging and poll interval.
// Everything else needs a restart.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok {
				return nil
			}
			a.apply(last, cfg)
			last = cfg
		}
	}
}

func (a *App) apply(prev, next *config.Config) {
	a.notify.Reloading()
	defer a.notify.Ready()

	a.logs.Apply(mapLogConfig(next))

	if sc, err := mapSchedulerConfig(next); err != nil {
		a.log.Warn("invalid poll config; keeping previous", logx.Err(err))
	} else if sc.Schedule == "" {
		a.sched.SetInterval(sc.Interval)
	}

	if prev == nil {
		return
	}
	if prev.Storage != next.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if prev.Feed != next.Feed || prev.Announce != next.Announce || prev.Telegram != next.Telegram {
		a.log.Warn("feed/announce config changed; restart required for changes to take effect")
	}
	if prev.Poll.Schedule != next.Poll.Schedule || prev.Poll.Timezone != next.Poll.Timezone {
		a.log.Warn("poll.schedule changed; restart required for changes to take effect")
	}
}
