package announce

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited paces deliveries of the wrapped announcer.
type Limited struct {
	next    Announcer
	limiter *rate.Limiter
}

// WithRateLimit wraps next so it delivers at most perSec announcements per
// second with the given burst. perSec <= 0 returns next unchanged.
func WithRateLimit(next Announcer, perSec float64, burst int) Announcer {
	if perSec <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *Limited) Deliver(ctx context.Context, a Announcement) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return deliveryErr(a, err)
	}
	return l.next.Deliver(ctx, a)
}
