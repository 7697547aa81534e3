// Package scheduler drives poll cycles one at a time, either on a fixed
// interval or on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tubebot/internal/poller"
	logx "tubebot/pkg/logx"
)

// MinRecommendedInterval is the shortest interval that does not log a warning.
const MinRecommendedInterval = 60 * time.Second

// Cycler runs one cycle to completion.
type Cycler interface {
	RunCycle(ctx context.Context) poller.Outcome
	CatchUp(ctx context.Context) poller.Outcome
}

type Config struct {
	Interval    time.Duration
	Schedule    string // optional; overrides Interval when set
	Timezone    string // cron mode only
	SkipCatchUp bool
}

// Scheduler owns the only goroutine allowed to start cycles.
type Scheduler struct {
	c   Cycler
	log logx.Logger

	mu       sync.Mutex
	cfg      Config
	interval time.Duration
	last     poller.Outcome
	hasLast  bool
	running  bool

	cycleMu sync.Mutex

	trigger chan struct{}
	reset   chan struct{}

	// OnOutcome, if set, observes every finished cycle.
	OnOutcome func(poller.Outcome)
}

func New(c Cycler, cfg Config, log logx.Logger) (*Scheduler, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		c:       c,
		log:     log.With(logx.String("comp", "scheduler")),
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		reset:   make(chan struct{}, 1),
	}
	if strings.TrimSpace(cfg.Schedule) != "" {
		ps, err := ParseSchedule(cfg.Schedule)
		if err != nil {
			return nil, err
		}
		if ps.Kind == SpecInterval {
			cfg.Interval = ps.Every
			s.cfg.Schedule = ""
		}
	}
	if s.cfg.Schedule == "" {
		if cfg.Interval <= 0 {
			return nil, fmt.Errorf("poll interval must be > 0")
		}
		s.interval = cfg.Interval
		s.warnInterval(cfg.Interval)
	}
	return s, nil
}

func (s *Scheduler) warnInterval(d time.Duration) {
	if d < MinRecommendedInterval {
		s.log.Warn("poll interval below recommended minimum",
			logx.Duration("interval", d), logx.Duration("min", MinRecommendedInterval))
	}
}

// Interval returns the current fixed interval (zero in cron mode).
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the fixed interval. The wait in progress is
// recomputed against the new value.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	if s.cfg.Schedule != "" || s.interval == d {
		s.mu.Unlock()
		return
	}
	old := s.interval
	s.interval = d
	s.mu.Unlock()

	s.log.Info("poll interval changed", logx.Duration("from", old), logx.Duration("to", d))
	s.warnInterval(d)
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Trigger requests a cycle as soon as the current one (if any) finishes.
// Requests made while one is pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Last returns the most recent outcome.
func (s *Scheduler) Last() (poller.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Running reports whether Run is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Run performs catch-up once and then polls until ctx is cancelled. A cycle
// already in progress when ctx is cancelled runs to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	// After a successful catch-up the first poll waits a full interval.
	pollFirst := true
	if !s.cfg.SkipCatchUp {
		s.fire(ctx, poller.ModeCatchUp)
		if out, ok := s.Last(); ok && out.OK() {
			pollFirst = false
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if s.cfg.Schedule != "" {
		return s.runCron(ctx)
	}
	s.runLoop(ctx, pollFirst)
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context, pollFirst bool) {
	s.log.Info("polling started", logx.Duration("interval", s.Interval()))
	defer s.log.Info("polling stopped")

	for first := true; ; first = false {
		start := time.Now()
		if !first || pollFirst {
			s.fire(ctx, poller.ModePoll)
		}

		for {
			wait := s.Interval() - time.Since(start)
			if wait <= 0 {
				break
			}
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			case <-s.trigger:
				t.Stop()
			case <-s.reset:
				t.Stop()
				continue
			}
			break
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context) error {
	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}
	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	expr := s.cfg.Schedule
	if ps, err := ParseSchedule(expr); err == nil && ps.Kind == SpecCron {
		expr = ps.Cron
	}
	if _, err := c.AddFunc(expr, func() { s.fire(ctx, poller.ModePoll) }); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	c.Start()
	s.log.Info("polling started", logx.String("schedule", expr), logx.String("tz", loc.String()))

	for {
		select {
		case <-ctx.Done():
			<-c.Stop().Done()
			s.log.Info("polling stopped")
			return nil
		case <-s.trigger:
			s.fire(ctx, poller.ModePoll)
		}
	}
}

// fire runs one cycle under the cycle lock. The cycle context is detached
// from ctx cancellation.
func (s *Scheduler) fire(ctx context.Context, mode poller.Mode) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cctx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("cycle panic recovered",
				logx.String("mode", string(mode)),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			s.record(poller.Outcome{Mode: mode, Err: &poller.PanicError{Value: r}})
		}
	}()

	var out poller.Outcome
	if mode == poller.ModeCatchUp {
		out = s.c.CatchUp(cctx)
	} else {
		out = s.c.RunCycle(cctx)
	}
	s.record(out)
}

func (s *Scheduler) record(out poller.Outcome) {
	s.mu.Lock()
	s.last, s.hasLast = out, true
	s.mu.Unlock()
	if s.OnOutcome != nil {
		s.OnOutcome(out)
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
