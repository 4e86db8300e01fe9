package limiter

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Incr names one counter bucket to bump, with the expiry it should carry.
type Incr struct {
	Key string
	TTL time.Duration
}

// CounterStore holds per-(key, window) usage counters. Implementations must
// make Incr atomic per bucket; buckets for different keys never contend.
type CounterStore interface {
	// Counts returns current values for the given bucket keys (0 when absent).
	Counts(ctx context.Context, keys []string) ([]int64, error)
	// Incr bumps every bucket by one.
	Incr(ctx context.Context, items []Incr) error
}

// ---- Redis ----

// RedisCounterStore counts with INCR + EXPIRE, one Redis key per
// (api key, window bucket). This is the production store.
type RedisCounterStore struct {
	rdb *redis.Client
}

func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

var _ CounterStore = (*RedisCounterStore)(nil)

func (s *RedisCounterStore) Counts(ctx context.Context, keys []string) ([]int64, error) {
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			n, _ := strconv.ParseInt(str, 10, 64)
			out[i] = n
		}
	}
	return out, nil
}

func (s *RedisCounterStore) Incr(ctx context.Context, items []Incr) error {
	pipe := s.rdb.Pipeline()
	for _, it := range items {
		pipe.Incr(ctx, it.Key)
		pipe.Expire(ctx, it.Key, it.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ---- Memory ----

// MemoryCounterStore is the dev/test fallback. Buckets live in a sync.Map of
// atomic counters so unrelated keys never serialize on one lock.
type MemoryCounterStore struct {
	buckets sync.Map // key -> *memBucket
}

type memBucket struct {
	n         atomic.Int64
	expiresAt atomic.Int64 // unix nanos
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{}
}

var _ CounterStore = (*MemoryCounterStore)(nil)

func (s *MemoryCounterStore) Counts(_ context.Context, keys []string) ([]int64, error) {
	now := time.Now().UnixNano()
	out := make([]int64, len(keys))
	for i, k := range keys {
		v, ok := s.buckets.Load(k)
		if !ok {
			continue
		}
		b := v.(*memBucket)
		if exp := b.expiresAt.Load(); exp > 0 && exp < now {
			s.buckets.Delete(k)
			continue
		}
		out[i] = b.n.Load()
	}
	return out, nil
}

func (s *MemoryCounterStore) Incr(_ context.Context, items []Incr) error {
	for _, it := range items {
		v, _ := s.buckets.LoadOrStore(it.Key, &memBucket{})
		b := v.(*memBucket)
		b.n.Add(1)
		b.expiresAt.Store(time.Now().Add(it.TTL).UnixNano())
	}
	return nil
}
