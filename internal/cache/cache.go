// Package cache is the shared response cache in front of the upstream
// provider. Entries are content-addressed by query fingerprint and shared
// across all API keys; concurrent misses on one fingerprint collapse into a
// single upstream fetch.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wxgate/weather-gateway/internal/metrics"
)

// FetchFunc loads a payload from upstream on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Result is a cache lookup outcome.
type Result struct {
	Payload   []byte
	FetchedAt time.Time
	Hit       bool
}

// Stats is the point-in-time view served by the cache stats endpoint.
type Stats struct {
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type flight struct {
	done      chan struct{}
	payload   []byte
	fetchedAt time.Time
	err       error
}

// Cache wraps an EntryStore with TTL checks and per-fingerprint single
// flight. The zero value is not usable; construct with New.
type Cache struct {
	store      EntryStore
	defaultTTL time.Duration
	now        func() time.Time
	onPopulate PopulateHook

	mu       sync.Mutex
	inflight map[string]*flight

	hits   atomic.Int64
	misses atomic.Int64
}

// PopulateHook observes fresh payloads entering the cache.
type PopulateHook func(q Query, payload []byte, fetchedAt time.Time)

func New(store EntryStore, defaultTTL time.Duration) *Cache {
	return &Cache{
		store:      store,
		defaultTTL: defaultTTL,
		now:        time.Now,
		inflight:   make(map[string]*flight),
	}
}

// WithClock overrides the time source (tests).
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// OnPopulate registers a hook invoked after a fresh payload is stored. Used
// to feed the snapshot topic for webhook evaluation. The hook runs on the
// fetching goroutine, never on a waiter.
func (c *Cache) OnPopulate(fn PopulateHook) {
	c.onPopulate = fn
}

// GetOrFetch returns the cached payload for q, or runs fetch to populate it.
// ttl of 0 falls back to the cache default. When several callers miss on the
// same fingerprint at once, exactly one fetch runs; the rest wait for its
// result. A waiter whose context is canceled gets that error without
// disturbing the shared fetch.
func (c *Cache) GetOrFetch(ctx context.Context, q Query, ttl time.Duration, fetch FetchFunc) (Result, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	fp := q.Fingerprint()
	now := c.now()

	if e, ok, err := c.store.Get(ctx, fp); err == nil && ok && !e.Expired(now) {
		c.hits.Add(1)
		metrics.CacheOps.WithLabelValues("hit").Inc()
		return Result{Payload: e.Payload, FetchedAt: e.FetchedAt, Hit: true}, nil
	}
	c.mu.Lock()
	if fl, ok := c.inflight[fp]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			if fl.err != nil {
				return Result{}, fl.err
			}
			return Result{Payload: fl.payload, FetchedAt: fl.fetchedAt}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[fp] = fl
	c.mu.Unlock()

	// Only the flight owner counts a miss; joiners share its fetch and
	// would inflate the ratio under concurrency.
	c.misses.Add(1)
	metrics.CacheOps.WithLabelValues("miss").Inc()

	// The fetch outlives any single waiter: its result is shared, so one
	// impatient client must not abort it for everyone else.
	fctx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, fp)
			c.mu.Unlock()
			close(fl.done)
		}()

		payload, err := fetch(fctx)
		if err != nil {
			fl.err = err
			return
		}
		fetchedAt := c.now()
		fl.payload = payload
		fl.fetchedAt = fetchedAt

		e := Entry{Payload: payload, FetchedAt: fetchedAt, TTLMillis: ttl.Milliseconds()}
		if err := c.store.Set(fctx, fp, e, ttl); err != nil {
			metrics.CacheOps.WithLabelValues("store_error").Inc()
		}
		if c.onPopulate != nil {
			c.onPopulate(q, payload, fetchedAt)
		}
	}()

	select {
	case <-fl.done:
		if fl.err != nil {
			return Result{}, fl.err
		}
		return Result{Payload: fl.payload, FetchedAt: fl.fetchedAt}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Stats reports entry count and hit ratio since process start.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s, nil
}
