package ai

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/ports"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// RandomBot plays a uniformly random empty cell. When the swap is on offer
// it takes it with probability SwapRate.
type RandomBot struct {
	SwapRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomBot(seed int64) *RandomBot {
	return &RandomBot{
		SwapRate: 0.5,
		rng:      rand.New(rand.NewSource(seed)), //nolint: gosec // it's ok
	}
}

func (b *RandomBot) RequestMove(ctx context.Context, req ports.AIRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if req.CanSwap && b.rng.Float64() < b.SwapRate {
		return move.Swap().String(), nil
	}
	if len(req.Open) == 0 {
		return "", ErrNoAvailableMoves
	}
	chosen := req.Open[b.rng.Intn(len(req.Open))]
	return move.Place(chosen).String(), nil
}
