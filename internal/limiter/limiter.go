// Package limiter enforces per-key fixed-window rate and quota ceilings.
//
// Windows reset at fixed clock boundaries (top of minute, UTC midnight, UTC
// month start), which permits a burst of up to 2x ceiling across a boundary.
// That is an accepted trade-off over sliding windows: counters stay simple,
// auditable, and cheap.
package limiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wxgate/weather-gateway/internal/config"
)

// RateLimitError reports which window breached and when it resets.
type RateLimitError struct {
	Window     Window
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s window (limit %d, retry after %s)",
		e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// RetryAfterSeconds rounds up for the Retry-After header.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

// Limiter admits requests against a tier policy. Counters are checked for
// every window first and incremented only after all pass
// (increment-after-check; no rollback path is ever needed).
type Limiter struct {
	store  CounterStore
	prefix string
	now    func() time.Time
}

func New(store CounterStore, prefix string) *Limiter {
	if prefix == "" {
		prefix = "wx:rl:"
	}
	return &Limiter{store: store, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source (tests).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) bucketKey(apiKeyID int64, w Window, t time.Time) string {
	return fmt.Sprintf("%s%d:%s:%s", l.prefix, apiKeyID, w, BucketSuffix(w, t))
}

func ceilingFor(pol config.TierConfig, w Window) int {
	switch w {
	case WindowMinute:
		return pol.PerMinute
	case WindowDay:
		return pol.PerDay
	case WindowMonth:
		return pol.PerMonth
	default:
		return pol.PerMinute
	}
}

// Admit checks all windows against the policy and records usage when all
// pass. On breach it returns *RateLimitError naming the first breached
// window; counters are left untouched.
func (l *Limiter) Admit(ctx context.Context, apiKeyID int64, pol config.TierConfig) error {
	now := l.now()
	windows := Windows()

	keys := make([]string, len(windows))
	for i, w := range windows {
		keys[i] = l.bucketKey(apiKeyID, w, now)
	}

	counts, err := l.store.Counts(ctx, keys)
	if err != nil {
		return fmt.Errorf("limiter: read counters: %w", err)
	}

	for i, w := range windows {
		limit := ceilingFor(pol, w)
		if counts[i] >= int64(limit) {
			return &RateLimitError{
				Window:     w,
				Limit:      limit,
				RetryAfter: NextReset(w, now).Sub(now),
			}
		}
	}

	incrs := make([]Incr, len(windows))
	for i, w := range windows {
		incrs[i] = Incr{Key: keys[i], TTL: bucketTTL(w)}
	}
	if err := l.store.Incr(ctx, incrs); err != nil {
		return fmt.Errorf("limiter: record usage: %w", err)
	}
	return nil
}
