package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"tubebot/internal/metrics"
	logx "tubebot/pkg/logx"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultTotalTimeLimit = 10 * time.Second

	userAgent = "tubebot/1.0 (+https://github.com/tubebot)"
)

// Config controls one HTTPFetcher.
//
// Zero values fall back to the defaults above.
type Config struct {
	URL            string
	MaxAttempts    int
	BaseDelay      time.Duration // delay before retry n is BaseDelay*n
	TotalTimeLimit time.Duration // measured from the first attempt
}

// FetchError is returned when every attempt failed or the deadline passed.
type FetchError struct {
	Attempts         int
	Elapsed          time.Duration
	DeadlineExceeded bool
	Err              error // last attempt's failure
}

func (e *FetchError) Error() string {
	reason := "attempts exhausted"
	if e.DeadlineExceeded {
		reason = "deadline exceeded"
	}
	return fmt.Sprintf("fetch feed: %s after %d attempt(s) in %s: %v",
		reason, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status code: %d", e.Code) }

// HTTPFetcher downloads and parses the feed with bounded retries.
type HTTPFetcher struct {
	cfg    Config
	client *http.Client
	parser *gofeed.Parser
	log    logx.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*HTTPFetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option { return func(f *HTTPFetcher) { f.client = c } }

// WithClock replaces the wall clock and the retry sleep. Tests use it to
// observe requested delays without waiting for them.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *HTTPFetcher) {
		if now != nil {
			f.now = now
		}
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

func NewHTTPFetcher(cfg Config, log logx.Logger, opts ...Option) *HTTPFetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.TotalTimeLimit <= 0 {
		cfg.TotalTimeLimit = DefaultTotalTimeLimit
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	f := &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{},
		parser: gofeed.NewParser(),
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetch returns the feed items newest-first (feed order).
//
// Every transport or parse failure is retried up to MaxAttempts, waiting
// BaseDelay*n before retry n. The whole call never outlives TotalTimeLimit:
// once the limit has passed, or the next wait would cross it, Fetch gives up
// without waiting further. Waits are never shortened to fit the remaining
// budget, so a limit that is not a whole step past the last wait ends the
// fetch early with time left.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]Item, error) {
	start := f.now()

	var lastErr error
	for attempt := 1; ; attempt++ {
		// Bounded by what is left of the budget on the fetcher's clock.
		actx, cancel := context.WithTimeout(ctx, f.cfg.TotalTimeLimit-f.now().Sub(start))
		items, err := f.fetchOnce(actx)
		cancel()
		metrics.RecordFetchAttempt(err)
		if err == nil {
			if attempt > 1 {
				f.log.Info("feed fetch recovered", logx.Int("attempt", attempt), logx.Int("items", len(items)))
			}
			return items, nil
		}
		lastErr = err

		elapsed := f.now().Sub(start)
		f.log.Warn("feed fetch failed",
			logx.Int("attempt", attempt),
			logx.Int("max_attempts", f.cfg.MaxAttempts),
			logx.Duration("elapsed", elapsed),
			logx.Err(err),
		)

		fail := func(deadlineHit bool) error {
			return &FetchError{Attempts: attempt, Elapsed: elapsed, DeadlineExceeded: deadlineHit, Err: lastErr}
		}
		if ctx.Err() != nil {
			return nil, fail(false)
		}
		if elapsed >= f.cfg.TotalTimeLimit {
			f.log.Warn("feed fetch deadline exceeded", logx.Duration("limit", f.cfg.TotalTimeLimit))
			return nil, fail(true)
		}
		if attempt >= f.cfg.MaxAttempts {
			return nil, fail(false)
		}

		wait := f.cfg.BaseDelay * time.Duration(attempt)
		if elapsed+wait >= f.cfg.TotalTimeLimit {
			f.log.Warn("feed fetch deadline would pass during backoff",
				logx.Duration("limit", f.cfg.TotalTimeLimit), logx.Duration("wait", wait))
			return nil, fail(true)
		}
		if err := f.sleep(ctx, wait); err != nil {
			return nil, fail(false)
		}
	}
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return f.toItems(parsed), nil
}

func (f *HTTPFetcher) toItems(parsed *gofeed.Feed) []Item {
	items := make([]Item, 0, len(parsed.Items))
	for _, e := range parsed.Items {
		if e == nil {
			continue
		}
		id := videoID(e)
		if id == "" {
			f.log.Warn("feed entry without video id skipped", logx.String("title", e.Title))
			continue
		}
		it := Item{ID: id, Title: strings.TrimSpace(e.Title)}
		if e.PublishedParsed != nil {
			it.Published = *e.PublishedParsed
		}
		items = append(items, it)
	}
	return items
}

// videoID reads <yt:videoId>, falling back to the Atom id ("yt:video:<id>").
func videoID(e *gofeed.Item) string {
	if yt, ok := e.Extensions["yt"]; ok {
		for _, ext := range yt["videoId"] {
			if v := strings.TrimSpace(ext.Value); v != "" {
				return v
			}
		}
	}
	if rest, ok := strings.CutPrefix(e.GUID, "yt:video:"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
