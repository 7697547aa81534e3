// Package poller runs poll cycles: fetch the feed, diff it against the seen
// store, announce what is new and record it.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tubebot/internal/announce"
	"tubebot/internal/feed"
	"tubebot/internal/metrics"
	logx "tubebot/pkg/logx"
)

// Source returns the current feed snapshot in feed order.
type Source interface {
	Fetch(ctx context.Context) ([]feed.Item, error)
}

// Store is the part of storage.SeenStore a cycle needs.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type Mode string

const (
	ModePoll    Mode = "poll"
	ModeCatchUp Mode = "catchup"
)

// Outcome summarizes one cycle.
type Outcome struct {
	CycleID   string
	Mode      Mode
	Fetched   int
	Known     int
	Delivered int
	Inserted  int
	Failed    int // delivery failures; those items stay unmarked
	Before    int64
	After     int64
	Duration  time.Duration
	Err       error // fetch or store failure that ended the cycle early
}

// Delta is the growth of the seen store during the cycle.
func (o Outcome) Delta() int64 { return o.After - o.Before }

func (o Outcome) OK() bool { return o.Err == nil }

type Options struct {
	// DryRun logs what would be announced without delivering or inserting.
	DryRun bool
}

// Controller owns the collaborators of a cycle. It is not safe for
// concurrent cycles; the scheduler serializes calls.
type Controller struct {
	src   Source
	store Store
	ann   announce.Announcer
	opts  Options
	log   logx.Logger
	now   func() time.Time
}

func New(src Source, store Store, ann announce.Announcer, opts Options, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{
		src:   src,
		store: store,
		ann:   ann,
		opts:  opts,
		log:   log.With(logx.String("comp", "poller")),
		now:   time.Now,
	}
}

// RunCycle announces every feed item not yet in the store. Delivery failures
// leave the item unmarked so the next cycle retries it. Errors never escape;
// they are reported in the Outcome.
func (c *Controller) RunCycle(ctx context.Context) Outcome {
	return c.run(ctx, ModePoll)
}

// CatchUp records every feed item not yet in the store without announcing.
func (c *Controller) CatchUp(ctx context.Context) Outcome {
	return c.run(ctx, ModeCatchUp)
}

func (c *Controller) run(ctx context.Context, mode Mode) (out Outcome) {
	start := c.now()
	out = Outcome{CycleID: uuid.NewString(), Mode: mode}
	log := c.log.With(logx.String("cycle", out.CycleID), logx.String("mode", string(mode)))

	defer func() {
		if r := recover(); r != nil {
			out.Err = &PanicError{Value: r}
			out.After = out.Before + int64(out.Inserted)
			log.Error("cycle panic", logx.Any("panic", r))
		}
		out.Duration = c.now().Sub(start)
		c.report(log, out)
	}()

	before, err := c.store.Count(ctx)
	if err != nil {
		out.Err = err
		return out
	}
	out.Before, out.After = before, before

	items, err := c.src.Fetch(ctx)
	if err != nil {
		out.Err = err
		return out
	}
	out.Fetched = len(items)
	if len(items) == 0 {
		log.Info("feed has no items")
		return out
	}

	for _, it := range items {
		seen, err := c.store.Exists(ctx, it.ID)
		if err != nil {
			out.Err = err
			break
		}
		if seen {
			out.Known++
			log.Debug("already announced", logx.String("id", it.ID), logx.String("title", it.Title))
			continue
		}

		if mode == ModeCatchUp {
			if c.opts.DryRun {
				log.Info("would record", logx.String("id", it.ID))
				continue
			}
			if err := c.store.Insert(ctx, it.ID); err != nil {
				out.Err = err
				break
			}
			out.Inserted++
			continue
		}

		a := announce.FromItem(it)
		if c.opts.DryRun {
			log.Info("would announce", logx.String("id", a.ID), logx.String("category", a.Category.String()), logx.String("url", a.URL))
			continue
		}

		derr := c.ann.Deliver(ctx, a)
		metrics.RecordAnnouncement(a.Category.String(), derr)
		if derr != nil {
			out.Failed++
			if errors.Is(derr, announce.ErrNoDestination) {
				log.Error("announce destination missing", logx.String("id", a.ID), logx.Err(derr))
			} else {
				log.Warn("announce failed, will retry next cycle", logx.String("id", a.ID), logx.Err(derr))
			}
			continue
		}
		out.Delivered++
		log.Info("announced",
			logx.String("id", a.ID),
			logx.String("category", a.Category.String()),
			logx.String("title", a.Title),
		)

		if err := c.store.Insert(ctx, it.ID); err != nil {
			out.Err = err
			break
		}
		out.Inserted++
	}

	if out.Err != nil {
		out.After = out.Before + int64(out.Inserted)
		return out
	}
	after, err := c.store.Count(ctx)
	if err != nil {
		out.Err = err
		out.After = out.Before + int64(out.Inserted)
		return out
	}
	out.After = after
	return out
}

func (c *Controller) report(log logx.Logger, out Outcome) {
	metrics.RecordCycle(string(out.Mode), out.Err, out.Duration.Seconds(), out.After, float64(c.now().Unix()))

	fields := []logx.Field{
		logx.Int("fetched", out.Fetched),
		logx.Int("known", out.Known),
		logx.Int("delivered", out.Delivered),
		logx.Int("inserted", out.Inserted),
		logx.Int("failed", out.Failed),
		logx.Int64("count", out.After),
		logx.Int64("delta", out.Delta()),
		logx.Duration("took", out.Duration),
	}
	if out.Err != nil {
		log.Error("cycle failed", append(fields, logx.Err(out.Err))...)
		return
	}
	log.Info("cycle done", fields...)
}
