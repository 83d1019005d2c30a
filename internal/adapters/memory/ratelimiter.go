package memory

import (
	"context"
	"sync"
	"time"
)

// AlwaysAllow is a stub RateLimiter that permits every request.
type AlwaysAllow struct{}

func (AlwaysAllow) Allow(_ context.Context, _, _ string) bool { return true }

// RateLimiter is an in-process fixed-window limiter for single-instance
// deployments without redis.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	start   time.Time
	counter map[string]int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		counter: make(map[string]int),
	}
}

// Allow counts the request against token when the client sent one, otherwise
// against ip.
func (r *RateLimiter) Allow(_ context.Context, ip, token string) bool {
	key := "ip:" + ip
	if token != "" {
		key = "token:" + token
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.start) >= r.window {
		r.start = now
		clear(r.counter)
	}
	r.counter[key]++
	return r.counter[key] <= r.limit
}
