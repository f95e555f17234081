package policy

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisLimiter implements a fixed-window counter per key on redis: INCR the
// window counter, set the expiry on the first hit, deny once the count
// exceeds the threshold. One round trip per hit, shared across instances.
type RedisLimiter struct {
	rdb      *redis.Client
	requests int64
	window   time.Duration
}

// NewRedisLimiter creates a limiter allowing requests hits per window
func NewRedisLimiter(rdb *redis.Client, requests int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, requests: requests, window: window}
}

// Allow reports whether the hit for key is within the window budget.
// Redis errors fail open.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	redisKey := "ratelimit:" + key

	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		l.rdb.Expire(ctx, redisKey, l.window)
	}
	return count <= l.requests
}

// MemoryLimiter keeps a token bucket per key in memory. It is the fallback
// when no redis is configured; limits then apply per process instance.
type MemoryLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	lastSeen map[string]time.Time
}

// NewMemoryLimiter creates a limiter allowing requests hits per window,
// smoothed into a token bucket with the window budget as burst capacity.
func NewMemoryLimiter(requests int64, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rps:      rate.Limit(float64(requests) / window.Seconds()),
		burst:    int(requests),
	}
}

// Allow reports whether the hit for key is within budget
func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.rps, l.burst)
		l.buckets[key] = bucket
	}
	l.lastSeen[key] = time.Now()

	// Drop buckets idle for an hour to bound memory on high-cardinality IPs
	if len(l.buckets) > 10000 {
		cutoff := time.Now().Add(-time.Hour)
		for k, seen := range l.lastSeen {
			if seen.Before(cutoff) {
				delete(l.buckets, k)
				delete(l.lastSeen, k)
			}
		}
	}

	return bucket.Allow()
}
