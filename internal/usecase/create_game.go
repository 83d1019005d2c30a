package usecase

import (
	"context"
	"fmt"

	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
)

// CreateGameRequest is the input to CreateGame. The caller must hold one of
// the human seats.
type CreateGameRequest struct {
	Size        int
	AllowSwap   bool
	TimeControl timecontrol.Config
	Seats       [2]ports.Seat
	Start       bool
}

// GameCreator hosts new games.
type GameCreator struct {
	reg     *session.Registry
	rl      ports.RateLimiter
	maxSize int
}

func NewGameCreator(reg *session.Registry, rl ports.RateLimiter, maxSize int) *GameCreator {
	return &GameCreator{reg: reg, rl: rl, maxSize: maxSize}
}

func (g *GameCreator) CreateGame(ctx context.Context, c Client, req CreateGameRequest) (session.View, error) {
	if err := allow(ctx, g.rl, c, "create_game"); err != nil {
		return session.View{}, err
	}
	if req.Size < 1 || req.Size > g.maxSize {
		return session.View{}, fmt.Errorf("%w: size must be between 1 and %d", ErrInvalidRequest, g.maxSize)
	}
	if c.PlayerID == "" || !holdsSeat(req.Seats, c.PlayerID) {
		return session.View{}, fmt.Errorf("%w: creator must hold a seat", ErrInvalidRequest)
	}

	now := session.Now()
	h, err := g.reg.Create(ctx, session.CreateParams{
		Config: ports.GameConfig{
			Size:        req.Size,
			AllowSwap:   req.AllowSwap,
			TimeControl: req.TimeControl,
		},
		Seats: req.Seats,
		Start: req.Start,
	}, now)
	if err != nil {
		return session.View{}, err
	}
	return h.View(now), nil
}

func holdsSeat(seats [2]ports.Seat, playerID string) bool {
	for _, s := range seats {
		if !s.IsBot() && s.PlayerID == playerID {
			return true
		}
	}
	return false
}
