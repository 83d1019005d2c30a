package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/export"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
)

// GameGetter handles single-game retrieval.
type GameGetter struct {
	reg *session.Registry
	rl  ports.RateLimiter
}

func NewGameGetter(reg *session.Registry, rl ports.RateLimiter) *GameGetter {
	return &GameGetter{reg: reg, rl: rl}
}

func (g *GameGetter) GetGame(ctx context.Context, c Client, id uuid.UUID) (session.View, error) {
	if err := allow(ctx, g.rl, c, "get_game"); err != nil {
		return session.View{}, err
	}
	h, err := g.reg.Get(ctx, id)
	if err != nil {
		return session.View{}, err
	}
	return h.View(session.Now()), nil
}

// SGF returns the game record in SGF form.
func (g *GameGetter) SGF(ctx context.Context, c Client, id uuid.UUID) (string, error) {
	if err := allow(ctx, g.rl, c, "get_sgf"); err != nil {
		return "", err
	}
	h, err := g.reg.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return export.SGF(h.Record()), nil
}
