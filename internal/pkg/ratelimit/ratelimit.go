// Package ratelimit provides fixed-window counters keyed by caller.
//
// The Redis implementation checks and increments in one Lua script so
// concurrent callers across replicas cannot both slip under the limit.
// Memory is used when Redis is not configured.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	// Allow records one hit for key and reports whether it is within limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Limit returns the configured hits per window.
	Limit() int
}

const windowLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
    return {0, current}
end

local newVal = redis.call("INCR", key)
if newVal == 1 then
    redis.call("EXPIRE", key, ttl)
end
return {1, newVal}
`

var windowScript = redis.NewScript(windowLuaScript)

// RedisLimiter is a fixed-window limiter backed by Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a limiter allowing limit hits per window.
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// Limit implements Limiter.
func (l *RedisLimiter) Limit() int { return l.limit }

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := fmt.Sprintf("mailcore:ratelimit:%s:%s:%d", l.prefix, key, bucket)
	ttl := int(l.window/time.Second) * 2
	if ttl < 2 {
		ttl = 2
	}

	res, err := windowScript.Run(ctx, l.client, []string{redisKey}, l.limit, ttl).Slice()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	allowed, _ := res[0].(int64)
	return allowed == 1, nil
}

// MemoryLimiter is an in-process fixed-window limiter.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates an in-process limiter allowing limit hits per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, now: time.Now, buckets: make(map[string]*bucket)}
}

// Limit implements Limiter.
func (l *MemoryLimiter) Limit() int { return l.limit }

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.window)
	b, ok := l.buckets[key]
	if !ok || !b.start.Equal(start) {
		if len(l.buckets) > 10000 {
			l.evict(start)
		}
		b = &bucket{start: start}
		l.buckets[key] = b
	}
	if b.count >= l.limit {
		return false, nil
	}
	b.count++
	return true, nil
}

func (l *MemoryLimiter) evict(current time.Time) {
	for k, b := range l.buckets {
		if b.start.Before(current) {
			delete(l.buckets, k)
		}
	}
}

// New returns a Redis limiter when client is non-nil, otherwise a memory one.
func New(client *redis.Client, prefix string, limit int, window time.Duration) Limiter {
	if client != nil {
		return NewRedisLimiter(client, prefix, limit, window)
	}
	return NewMemoryLimiter(limit, window)
}
