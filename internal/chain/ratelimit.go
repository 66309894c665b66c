package chain

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter spreads balance reads across upstream hosts with one
// token bucket per endpoint, so a burst of refreshes cannot exceed an
// API's request budget.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained
// requests per endpoint with the given burst.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(ratePerSecond),
		burst:   burst,
	}
}

// NewRateLimiterPerMinute creates a limiter from a per-minute budget,
// matching how the configuration expresses API limits.
func NewRateLimiterPerMinute(perMinute, burst int) *RateLimiter {
	return NewRateLimiter(float64(perMinute)/60.0, burst)
}

// DefaultRateLimiter allows 30 requests per minute with a burst of 5,
// the public balance API budget.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiterPerMinute(30, 5)
}

// Allow reports whether a request to endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.bucket(endpoint).Allow()
}

// Wait blocks until a request to endpoint may proceed or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	return r.bucket(endpoint).Wait(ctx)
}

func (r *RateLimiter) bucket(endpoint string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[endpoint]
	if !ok {
		b = rate.NewLimiter(r.limit, r.burst)
		r.buckets[endpoint] = b
	}
	return b
}
