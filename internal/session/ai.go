package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/metrics"
	"github.com/randomtoy/hex-backend/internal/ports"
)

// requestAILocked asks the AI source of the seat to move, once per state
// version.
func (h *HostedGame) requestAILocked() {
	if h.game.State() != game.StatePlaying {
		return
	}
	player := h.game.CurrentPlayer()
	seat := h.seats[player]
	if !seat.IsBot() || h.aiPending == h.version {
		return
	}
	src, ok := h.deps.AI[seat.Kind]
	if !ok {
		h.log.Warn("no ai source for seat", zap.String("kind", string(seat.Kind)))
		return
	}

	history := h.game.History()
	moves := make([]string, len(history))
	for i, rec := range history {
		moves[i] = rec.Move.String()
	}
	req := ports.AIRequest{
		GameID:    h.id,
		Size:      h.cfg.Size,
		Player:    player,
		Moves:     moves,
		CanSwap:   h.game.CanSwap(),
		Remaining: h.clock.RemainingTime(player, h.opts.Now()),
		Open:      h.game.EmptyCells(),
	}
	h.aiPending = h.version
	go h.runAI(src, seat.Kind, req, h.version)
}

// runAI waits for the AI outside the lock. The answer is dropped when the
// game changed in the meantime.
func (h *HostedGame) runAI(src ports.AIMoveSource, kind ports.SeatKind, req ports.AIRequest, version int) {
	ctx, cancel := context.WithTimeout(h.ctx, h.opts.AITimeout)
	defer cancel()

	token, err := src.RequestMove(ctx, req)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.aiPending == version {
		h.aiPending = -1
	}
	if h.ctx.Err() != nil {
		return
	}
	if h.version != version || h.game.Terminal() {
		metrics.AIRequests.WithLabelValues(string(kind), "stale").Inc()
		return
	}
	if err != nil {
		metrics.AIRequests.WithLabelValues(string(kind), "error").Inc()
		h.log.Warn("ai move request failed", zap.Int("move_index", len(req.Moves)), zap.Error(err))
		h.aiFailedLocked(req.Player)
		return
	}

	m, err := move.Parse(token)
	if err != nil {
		metrics.AIRequests.WithLabelValues(string(kind), "invalid").Inc()
		h.log.Warn("ai returned malformed move", zap.String("move", token))
		h.aiFailedLocked(req.Player)
		return
	}
	if err := h.playLocked(req.Player, m, h.opts.Now(), "ai"); err != nil {
		metrics.AIRequests.WithLabelValues(string(kind), "rejected").Inc()
		h.log.Warn("ai move rejected", zap.String("move", token), zap.Error(err))
		h.aiFailedLocked(req.Player)
		return
	}
	h.aiFailed = 0
	metrics.AIRequests.WithLabelValues(string(kind), "ok").Inc()
}

// aiFailedLocked counts a failed answer in a row. Once the seat has failed
// MaxAIFailures times it forfeits.
func (h *HostedGame) aiFailedLocked(player int) {
	if h.game.Terminal() {
		return
	}
	h.aiFailed++
	if h.aiFailed < h.opts.MaxAIFailures {
		return
	}
	h.log.Warn("ai seat gave up, forfeiting", zap.Int("player", player), zap.Int("failures", h.aiFailed))
	if err := h.forfeitLocked(player, h.opts.Now()); err != nil {
		h.log.Error("forfeit ai seat", zap.Error(err))
	}
}
