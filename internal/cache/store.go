package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one cached upstream payload with its fetch timestamp and TTL.
type Entry struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	TTLMillis int64     `json:"ttl_ms"`
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.FetchedAt) >= time.Duration(e.TTLMillis)*time.Millisecond
}

// EntryStore persists cache entries keyed by fingerprint.
type EntryStore interface {
	Get(ctx context.Context, fp string) (Entry, bool, error)
	Set(ctx context.Context, fp string, e Entry, ttl time.Duration) error
	Count(ctx context.Context) (int64, error)
}

// ---- Redis ----

// RedisEntryStore keeps entries in Redis with PX expiry; Redis eviction and
// the entry's own timestamp double-guard the TTL invariant.
type RedisEntryStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisEntryStore(rdb *redis.Client, prefix string) *RedisEntryStore {
	if prefix == "" {
		prefix = "wx:cache:"
	}
	return &RedisEntryStore{rdb: rdb, prefix: prefix}
}

var _ EntryStore = (*RedisEntryStore)(nil)

func (s *RedisEntryStore) Get(ctx context.Context, fp string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+fp).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry self-heals via re-fetch.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *RedisEntryStore) Set(ctx context.Context, fp string, e Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+fp, raw, ttl).Err()
}

func (s *RedisEntryStore) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.prefix+"*", 512).Result()
		if err != nil {
			return 0, err
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// ---- Memory ----

// MemoryEntryStore is the dev/test fallback; entries are sharded by
// fingerprint into per-shard locks so unrelated fingerprints never contend.
type MemoryEntryStore struct {
	shards [16]memShard
}

type memShard struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	e         Entry
	expiresAt time.Time
}

func NewMemoryEntryStore() *MemoryEntryStore {
	s := &MemoryEntryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]memEntry)
	}
	return s
}

var _ EntryStore = (*MemoryEntryStore)(nil)

func (s *MemoryEntryStore) shard(fp string) *memShard {
	var h uint32
	for i := 0; i < len(fp); i++ {
		h = h*31 + uint32(fp[i])
	}
	return &s.shards[h%uint32(len(s.shards))]
}

func (s *MemoryEntryStore) Get(_ context.Context, fp string) (Entry, bool, error) {
	sh := s.shard(fp)
	sh.mu.RLock()
	me, ok := sh.entries[fp]
	sh.mu.RUnlock()
	if !ok || time.Now().After(me.expiresAt) {
		return Entry{}, false, nil
	}
	return me.e, true, nil
}

func (s *MemoryEntryStore) Set(_ context.Context, fp string, e Entry, ttl time.Duration) error {
	sh := s.shard(fp)
	sh.mu.Lock()
	sh.entries[fp] = memEntry{e: e, expiresAt: time.Now().Add(ttl)}
	sh.mu.Unlock()
	return nil
}

func (s *MemoryEntryStore) Count(_ context.Context) (int64, error) {
	var n int64
	now := time.Now()
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, me := range sh.entries {
			if now.Before(me.expiresAt) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n, nil
}
