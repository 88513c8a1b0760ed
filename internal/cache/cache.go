// Package cache stores the messages produced by declared actions so repeated
// calls with the same arguments skip the upstream request.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces action results in shared stores.
	KeyPrefix = "actioncache"

	defaultMaxSize = 256
	defaultTTL     = 10 * time.Minute
)

// Store is a string cache keyed by versioned action keys. Lookup failures
// are treated as misses.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// =================================================================================
// In-memory LRU
// =================================================================================

type entry struct {
	value    string
	storedAt time.Time
}

// LRU is an in-process Store bounded by size and entry age.
type LRU struct {
	cache *lru.Cache[string, entry]
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*LRU)(nil)

// NewLRU creates an LRU store. Non-positive values fall back to defaults.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	// lru.New only fails on a non-positive size.
	c, _ := lru.New[string, entry](size)
	return &LRU{cache: c, ttl: ttl, now: time.Now}
}

func (l *LRU) Get(_ context.Context, key string) (string, bool) {
	e, ok := l.cache.Get(key)
	if !ok {
		return "", false
	}
	if l.now().Sub(e.storedAt) >= l.ttl {
		l.cache.Remove(key)
		return "", false
	}
	return e.value, true
}

func (l *LRU) Set(_ context.Context, key, value string) {
	l.cache.Add(key, entry{value: value, storedAt: l.now()})
}

// Len reports the number of entries, expired ones included.
func (l *LRU) Len() int { return l.cache.Len() }

// =================================================================================
// Redis
// =================================================================================

// Redis is a Store shared between gateway instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. The caller owns the client.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		r.logger.Warn("redis GET error for action cache", slog.String("key", key), slog.Any("error", err))
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.logger.Warn("redis SET error for action cache", slog.String("key", key), slog.Any("error", err))
	}
}
