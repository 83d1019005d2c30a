package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window limiter built on INCR/EXPIRE. Keys have the
// form rl:<window_seconds>:<identifier>. Redis errors fail open.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	log    *zap.Logger
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, limit: int64(limit), window: window, log: log}
}

// Allow counts the request against token when the client sent one, otherwise
// against ip.
func (r *RateLimiter) Allow(ctx context.Context, ip, token string) bool {
	ident := "ip:" + ip
	if token != "" {
		ident = "token:" + token
	}
	key := "rl:" + strconv.FormatInt(int64(r.window.Seconds()), 10) + ":" + ident

	val, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.log.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if val == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			r.log.Warn("rate limiter expire failed", zap.String("key", key), zap.Error(err))
		}
	}
	return val <= r.limit
}
