// Package ratelimiter throttles store requests per calling application entity.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Defaults bounding the number of tracked calling AE titles.
const (
	DefaultMaxKeys = 4096
	DefaultIdleTTL = 10 * time.Minute
)

// RateLimiter keeps one token bucket per key (typically the calling AE title).
//
// This implementation wraps golang.org/x/time/rate to provide:
//   - Token bucket rate limiting per key (bursts allowed, sustained rate enforced)
//   - A bounded key table: keys come from request headers and cannot be trusted
//
// Key table bounds:
//  1. Every Allow() refreshes the key's last-seen time
//  2. When a new key arrives and the table is full, buckets idle for longer
//     than the idle TTL are swept
//  3. If the table is still full, the least recently seen bucket is evicted
//
// An evicted key starts again with a full bucket.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	maxKeys int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithMaxKeys caps the number of tracked keys. Values <= 0 are ignored.
func WithMaxKeys(n int) Option {
	return func(r *RateLimiter) {
		if n > 0 {
			r.maxKeys = n
		}
	}
}

// WithIdleTTL sets how long an unused bucket is kept once the table is full.
func WithIdleTTL(d time.Duration) Option {
	return func(r *RateLimiter) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *RateLimiter) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a RateLimiter with the specified per-key rate and burst.
//
// Parameters:
//   - requestsPerSecond: Maximum sustained rate per key (tokens added per second)
//   - burst: Maximum burst size per key (bucket capacity in tokens)
//   - opts: Key table bounds (WithMaxKeys, WithIdleTTL)
//
// Special cases:
//   - requestsPerSecond = 0: No rate limiting (unlimited), no key is tracked
//   - burst = 0: Defaults to requestsPerSecond
//
// Example:
//
//	// Allow each calling AE 50 stores/s sustained, 100 in a burst
//	limiter := New(50, 100)
//
// Returns a configured RateLimiter.
func New(requestsPerSecond, burst uint, opts ...Option) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limit: rate.Inf}
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	r := &RateLimiter{
		limit:   rate.Limit(requestsPerSecond),
		burst:   int(burst),
		maxKeys: DefaultMaxKeys,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Unlimited reports whether the limiter lets every request through.
func (r *RateLimiter) Unlimited() bool {
	return r == nil || r.limit == rate.Inf
}

// Allow consumes a token for key without waiting.
//
// Returns:
//   - true if the request is allowed (token consumed)
//   - false if the request should be rejected (no tokens available)
func (r *RateLimiter) Allow(key string) bool {
	if r.Unlimited() {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b, ok := r.buckets[key]
	if !ok {
		if len(r.buckets) >= r.maxKeys {
			r.evictLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// evictLocked sweeps idle buckets and, when none is idle, drops the least
// recently seen one. Callers hold r.mu.
func (r *RateLimiter) evictLocked(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
		found      bool
	)
	for k, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.idleTTL {
			delete(r.buckets, k)
			continue
		}
		if !found || b.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen, found = k, b.lastSeen, true
		}
	}
	if len(r.buckets) >= r.maxKeys && found {
		delete(r.buckets, oldestKey)
	}
}

// Keys returns how many keys are currently tracked.
func (r *RateLimiter) Keys() int {
	if r.Unlimited() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
