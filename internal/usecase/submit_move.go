package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
)

// SubmitMoveRequest is the input to SubmitMove.
type SubmitMoveRequest struct {
	Move string
	// ExpectedVersion, when set, must match the current game version.
	ExpectedVersion *int
}

// MoveSubmitter handles move and premove submission.
type MoveSubmitter struct {
	reg *session.Registry
	rl  ports.RateLimiter
}

func NewMoveSubmitter(reg *session.Registry, rl ports.RateLimiter) *MoveSubmitter {
	return &MoveSubmitter{reg: reg, rl: rl}
}

// SubmitMove plays req.Move for the caller. The returned view is current
// even when the move was refused.
func (m *MoveSubmitter) SubmitMove(ctx context.Context, c Client, gameID uuid.UUID, req SubmitMoveRequest) (session.View, error) {
	if err := allow(ctx, m.rl, c, "submit_move"); err != nil {
		return session.View{}, err
	}
	// format errors are reported before the game is looked up
	if !move.IsValidToken(req.Move) {
		return session.View{}, move.ErrInvalidMoveFormat
	}

	h, err := m.reg.Get(ctx, gameID)
	if err != nil {
		return session.View{}, err
	}

	now := session.Now()
	if req.ExpectedVersion != nil {
		return h.SubmitMoveAtVersion(c.PlayerID, req.Move, *req.ExpectedVersion, now)
	}
	return h.SubmitMove(c.PlayerID, req.Move, now)
}

// SetPremove queues a move to be played when the caller's turn arrives.
func (m *MoveSubmitter) SetPremove(ctx context.Context, c Client, gameID uuid.UUID, token string) (session.Premove, error) {
	if err := allow(ctx, m.rl, c, "premove"); err != nil {
		return session.Premove{}, err
	}
	if !move.IsValidToken(token) {
		return session.Premove{}, move.ErrInvalidMoveFormat
	}
	h, err := m.reg.Get(ctx, gameID)
	if err != nil {
		return session.Premove{}, err
	}
	return h.SubmitPremove(c.PlayerID, token, session.Now())
}

func (m *MoveSubmitter) CancelPremove(ctx context.Context, c Client, gameID uuid.UUID) error {
	if err := allow(ctx, m.rl, c, "premove"); err != nil {
		return err
	}
	h, err := m.reg.Get(ctx, gameID)
	if err != nil {
		return err
	}
	return h.CancelPremove(c.PlayerID)
}
