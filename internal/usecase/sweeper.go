package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/session"
)

// Sweeper periodically ends games whose clock ran out, retries pending AI
// turns and releases finished games from memory.
type Sweeper struct {
	reg      *session.Registry
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(reg *session.Registry, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{reg: reg, interval: interval, log: log}
}

// Run sweeps until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reg.Sweep(session.Now())
		}
	}
}
