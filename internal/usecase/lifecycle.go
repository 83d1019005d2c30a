package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
)

// GameActions covers every player action other than moves.
type GameActions struct {
	reg *session.Registry
	rl  ports.RateLimiter
}

func NewGameActions(reg *session.Registry, rl ports.RateLimiter) *GameActions {
	return &GameActions{reg: reg, rl: rl}
}

// Start begins play. Only a seated player may start the game.
func (a *GameActions) Start(ctx context.Context, c Client, gameID uuid.UUID) (session.View, error) {
	h, err := a.game(ctx, c, gameID, "start")
	if err != nil {
		return session.View{}, err
	}
	if !h.IsPlayer(c.PlayerID) {
		return h.View(session.Now()), session.ErrNotAPlayer
	}
	return h.Start(session.Now())
}

func (a *GameActions) Resign(ctx context.Context, c Client, gameID uuid.UUID) (session.View, error) {
	h, err := a.game(ctx, c, gameID, "resign")
	if err != nil {
		return session.View{}, err
	}
	return h.Resign(c.PlayerID, session.Now())
}

func (a *GameActions) Cancel(ctx context.Context, c Client, gameID uuid.UUID) (session.View, error) {
	h, err := a.game(ctx, c, gameID, "cancel")
	if err != nil {
		return session.View{}, err
	}
	return h.Cancel(c.PlayerID, session.Now())
}

func (a *GameActions) RequestTakeback(ctx context.Context, c Client, gameID uuid.UUID) (session.View, error) {
	h, err := a.game(ctx, c, gameID, "takeback")
	if err != nil {
		return session.View{}, err
	}
	return h.RequestTakeback(c.PlayerID, session.Now())
}

func (a *GameActions) AnswerTakeback(ctx context.Context, c Client, gameID uuid.UUID, accept bool) (session.View, error) {
	h, err := a.game(ctx, c, gameID, "takeback")
	if err != nil {
		return session.View{}, err
	}
	return h.AnswerTakeback(c.PlayerID, accept, session.Now())
}

func (a *GameActions) game(ctx context.Context, c Client, gameID uuid.UUID, endpoint string) (*session.HostedGame, error) {
	if err := allow(ctx, a.rl, c, endpoint); err != nil {
		return nil, err
	}
	return a.reg.Get(ctx, gameID)
}
