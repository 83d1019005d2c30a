package usecase

import (
	"context"
	"errors"

	"github.com/randomtoy/hex-backend/internal/metrics"
	"github.com/randomtoy/hex-backend/internal/ports"
)

var (
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidRequest = errors.New("invalid request")
)

// Client identifies the caller of a usecase.
type Client struct {
	IP       string
	Token    string
	PlayerID string
}

func allow(ctx context.Context, rl ports.RateLimiter, c Client, endpoint string) error {
	if !rl.Allow(ctx, c.IP, c.Token) {
		metrics.RLBlocked.WithLabelValues(endpoint).Inc()
		return ErrRateLimited
	}
	return nil
}
