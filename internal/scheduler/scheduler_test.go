package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tubebot/internal/poller"
	logx "tubebot/pkg/logx"
)

type fakeCycler struct {
	delay    time.Duration
	panicOn  int32
	inflight atomic.Int32
	maxSeen  atomic.Int32
	polls    atomic.Int32
	catchups atomic.Int32
	catchErr error

	mu    sync.Mutex
	order []poller.Mode
}

func (f *fakeCycler) enter(mode poller.Mode) {
	n := f.inflight.Add(1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	f.mu.Lock()
	f.order = append(f.order, mode)
	f.mu.Unlock()
}

func (f *fakeCycler) RunCycle(ctx context.Context) poller.Outcome {
	f.enter(poller.ModePoll)
	defer f.inflight.Add(-1)
	n := f.polls.Add(1)
	if n == f.panicOn {
		panic("cycle exploded")
	}
	time.Sleep(f.delay)
	return poller.Outcome{Mode: poller.ModePoll}
}

func (f *fakeCycler) CatchUp(ctx context.Context) poller.Outcome {
	f.enter(poller.ModeCatchUp)
	defer f.inflight.Add(-1)
	f.catchups.Add(1)
	return poller.Outcome{Mode: poller.ModeCatchUp, Err: f.catchErr}
}

func runFor(t *testing.T, s *Scheduler, d time.Duration, during func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	if during != nil {
		during()
	}
	time.Sleep(d)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestCyclesNeverOverlap(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{delay: 30 * time.Millisecond}
	s, err := New(fc, Config{Interval: 5 * time.Millisecond}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	runFor(t, s, 250*time.Millisecond, func() {
		for i := 0; i < 20; i++ {
			go s.Trigger()
		}
	})

	if got := fc.maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent cycles=%d", got)
	}
	if fc.polls.Load() < 2 {
		t.Fatalf("expected several cycles, got %d", fc.polls.Load())
	}
}

func TestCatchUpRunsFirstAndOnce(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{}
	s, _ := New(fc, Config{Interval: 10 * time.Millisecond}, logx.Nop())

	runFor(t, s, 60*time.Millisecond, nil)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.order) < 2 || fc.order[0] != poller.ModeCatchUp {
		t.Fatalf("order=%v", fc.order)
	}
	if fc.catchups.Load() != 1 {
		t.Fatalf("catchups=%d", fc.catchups.Load())
	}
}

func TestSkipCatchUp(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{}
	s, _ := New(fc, Config{Interval: 10 * time.Millisecond, SkipCatchUp: true}, logx.Nop())
	runFor(t, s, 30*time.Millisecond, nil)
	if fc.catchups.Load() != 0 {
		t.Fatal("catch-up ran")
	}
}

func TestPanickingCycleDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{panicOn: 1}
	s, _ := New(fc, Config{Interval: 5 * time.Millisecond}, logx.Nop())

	var panics atomic.Int32
	s.OnOutcome = func(o poller.Outcome) {
		if _, ok := o.Err.(*poller.PanicError); ok {
			panics.Add(1)
		}
	}
	runFor(t, s, 80*time.Millisecond, nil)

	if panics.Load() != 1 {
		t.Fatalf("panics=%d", panics.Load())
	}
	if fc.polls.Load() < 3 {
		t.Fatalf("loop stopped after panic: polls=%d", fc.polls.Load())
	}
}

func TestSetIntervalShortensWait(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{}
	s, _ := New(fc, Config{Interval: time.Hour, SkipCatchUp: true}, logx.Nop())

	runFor(t, s, 100*time.Millisecond, func() {
		time.Sleep(20 * time.Millisecond)
		s.SetInterval(10 * time.Millisecond)
	})
	if fc.polls.Load() < 2 {
		t.Fatalf("interval change ignored: polls=%d", fc.polls.Load())
	}
	if s.Interval() != 10*time.Millisecond {
		t.Fatalf("interval=%s", s.Interval())
	}
}

func TestInFlightCycleCompletesOnShutdown(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{delay: 80 * time.Millisecond}
	s, _ := New(fc, Config{Interval: time.Hour, SkipCatchUp: true}, logx.Nop())

	var finished atomic.Int32
	s.OnOutcome = func(poller.Outcome) { finished.Add(1) }
	runFor(t, s, 10*time.Millisecond, nil)

	if finished.Load() != 1 {
		t.Fatalf("in-flight cycle did not finish: %d", finished.Load())
	}
}

func TestCronScheduleRuns(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{}
	s, err := New(fc, Config{Schedule: "@every 1s", SkipCatchUp: true}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if s.Interval() != 0 {
		t.Fatalf("cron mode should not set an interval")
	}
	runFor(t, s, 50*time.Millisecond, func() { s.Trigger() })
	if fc.polls.Load() < 1 {
		t.Fatal("trigger ignored in cron mode")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(&fakeCycler{}, Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := New(&fakeCycler{}, Config{Schedule: "nonsense"}, logx.Nop()); err == nil {
		t.Fatal("expected error for bad schedule")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    string
		kind  SpecKind
		every time.Duration
		cron  string
		err   bool
	}{
		{in: "5m", kind: SpecInterval, every: 5 * time.Minute},
		{in: "00:05", kind: SpecInterval, every: 5 * time.Minute},
		{in: "01:30", kind: SpecInterval, every: 90 * time.Minute},
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *"},
		{in: "@every 5m", kind: SpecCron, cron: "@every 5m"},
		{in: "cron:@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "every:90s", kind: SpecInterval, every: 90 * time.Second},
		{in: "", err: true},
		{in: "0s", err: true},
		{in: "00:75", err: true},
		{in: "soon", err: true},
		{in: "not a schedule", err: true},
		{in: "cron:61 * * * *", err: true},
	}
	for _, tc := range cases {
		ps, err := ParseSchedule(tc.in)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if ps.Kind != tc.kind || ps.Every != tc.every || ps.Cron != tc.cron {
			t.Fatalf("%q: got %+v", tc.in, ps)
		}
	}
}

func TestFirstPollWaitsAfterCatchUp(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{}
	s, _ := New(fc, Config{Interval: time.Hour}, logx.Nop())

	runFor(t, s, 50*time.Millisecond, nil)

	if fc.catchups.Load() != 1 || fc.polls.Load() != 0 {
		t.Fatalf("catchups=%d polls=%d", fc.catchups.Load(), fc.polls.Load())
	}
}

func TestFailedCatchUpPollsImmediately(t *testing.T) {
	t.Parallel()
	fc := &fakeCycler{catchErr: errors.New("feed down")}
	s, _ := New(fc, Config{Interval: time.Hour}, logx.Nop())

	runFor(t, s, 50*time.Millisecond, nil)

	if fc.polls.Load() != 1 {
		t.Fatalf("polls=%d", fc.polls.Load())
	}
}

func TestShortIntervalWarns(t *testing.T) {
	t.Parallel()
	const warning = "poll interval below recommended minimum"
	cases := []struct {
		name     string
		interval time.Duration
		set      time.Duration
		warn     bool
	}{
		{name: "below minimum", interval: 30 * time.Second, warn: true},
		{name: "at minimum", interval: MinRecommendedInterval},
		{name: "default", interval: 5 * time.Minute},
		{name: "lowered at runtime", interval: 5 * time.Minute, set: 10 * time.Second, warn: true},
		{name: "raised at runtime", interval: 5 * time.Minute, set: 2 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			s, err := New(&fakeCycler{}, Config{Interval: tc.interval}, logx.NewWriter(&buf, "debug"))
			if err != nil {
				t.Fatal(err)
			}
			if tc.set > 0 {
				s.SetInterval(tc.set)
			}
			if got := strings.Contains(buf.String(), warning); got != tc.warn {
				t.Fatalf("warned=%v want %v; log:\n%s", got, tc.warn, buf.String())
			}
		})
	}
}
