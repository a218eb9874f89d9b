package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"music-concierge/internal/infra/metrics"
)

const limitWindow = time.Hour

// Per-endpoint limits, per source IP per fixed clock-hour window. The
// window does not roll: counts reset at the top of each hour.
const (
	LimitSubmit    = 5
	LimitRecommend = 10
	LimitChat      = 30
)

// CounterStore counts hits inside a fixed window.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounters backs the limiter with Redis so limits hold across
// restarts.
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters builds the Redis-backed counter store.
func NewRedisCounters(client *redis.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

// Incr bumps the key and sets its expiry on first hit.
func (r *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	start := time.Now()
	count, err := r.client.Incr(ctx, key).Result()
	if err == nil && count == 1 {
		err = r.client.Expire(ctx, key, window).Err()
	}
	metrics.ObserveNetworkRequest("redis", "rate_incr", "ratelimit", start, err)
	return count, err
}

// MemoryCounters is the in-process fallback when Redis is not
// configured.
type MemoryCounters struct {
	mu     sync.Mutex
	counts map[string]*memoryWindow
}

type memoryWindow struct {
	count   int64
	expires time.Time
}

// NewMemoryCounters builds the in-memory counter store.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[string]*memoryWindow)}
}

// Incr bumps the key inside its window.
func (m *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	w, ok := m.counts[key]
	if !ok || now.After(w.expires) {
		w = &memoryWindow{expires: now.Add(window)}
		m.counts[key] = w
	}
	w.count++
	return w.count, nil
}

// RateLimiter enforces fixed-window per-IP limits.
type RateLimiter struct {
	counters CounterStore
}

// NewRateLimiter builds the limiter over a counter store.
func NewRateLimiter(counters CounterStore) *RateLimiter {
	return &RateLimiter{counters: counters}
}

// Limit wraps a handler with an hourly per-IP cap. RealIP middleware
// has already resolved the first forwarded hop into RemoteAddr.
func (l *RateLimiter) Limit(endpoint string, max int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		bucket := time.Now().Unix() / int64(limitWindow.Seconds())
		key := fmt.Sprintf("rl:%s:%s:%d", endpoint, ip, bucket)
		count, err := l.counters.Incr(r.Context(), key, limitWindow)
		if err != nil {
			// Fail open: a broken counter store must not take the API down.
			next(w, r)
			return
		}
		if count > int64(max) {
			metrics.RateLimitedTotal.WithLabelValues(endpoint).Inc()
			w.Header().Set("RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(limitWindow.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
