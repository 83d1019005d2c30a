package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/autosave"
	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/metrics"
	"github.com/randomtoy/hex-backend/internal/ports"
)

// Premove is a move queued by a player before their turn. It is played only
// if the history is exactly one move longer when the turn arrives.
type Premove struct {
	Move      move.Move
	MoveIndex int
}

// HostedGame is the single live instance of a game. Every mutation runs under
// its mutex, so one submission at a time changes the game and the clocks.
type HostedGame struct {
	id    uuid.UUID
	cfg   ports.GameConfig
	seats [2]ports.Seat
	deps  Deps
	opts  Options
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	saver  *autosave.Saver[int]

	mu        sync.Mutex
	game      *game.Game
	clock     *timecontrol.Engine
	premoves  [2]*Premove
	takeback  int
	version   int
	saved     int
	aiPending int
	aiFailed  int
}

func newHosted(
	ctx context.Context,
	id uuid.UUID,
	cfg ports.GameConfig,
	seats [2]ports.Seat,
	g *game.Game,
	clock *timecontrol.Engine,
	version int,
	deps Deps,
	opts Options,
) *HostedGame {
	ctx, cancel := context.WithCancel(ctx)
	h := &HostedGame{
		id:        id,
		cfg:       cfg,
		seats:     seats,
		deps:      deps,
		opts:      opts,
		log:       deps.Log.With(zap.String("game_id", id.String())),
		ctx:       ctx,
		cancel:    cancel,
		game:      g,
		clock:     clock,
		takeback:  -1,
		version:   version,
		aiPending: -1,
	}
	h.saver = autosave.New(ctx, h.persist, opts.SaveTimeout)
	return h
}

func (h *HostedGame) ID() uuid.UUID            { return h.id }
func (h *HostedGame) Seats() [2]ports.Seat     { return h.seats }
func (h *HostedGame) Config() ports.GameConfig { return h.cfg }

// IsPlayer reports whether playerID holds a human seat.
func (h *HostedGame) IsPlayer(playerID string) bool {
	for _, s := range h.seats {
		if !s.IsBot() && playerID != "" && s.PlayerID == playerID {
			return true
		}
	}
	return false
}

// View returns the current state as of now.
func (h *HostedGame) View(now time.Time) View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewLocked(now)
}

// Record returns the persisted form of the game.
func (h *HostedGame) Record() ports.GameRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recordLocked()
}

// Start begins play and runs player 0's clock.
func (h *HostedGame) Start(now time.Time) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.game.Start(now); err != nil {
		return h.viewLocked(now), err
	}
	h.clock.Start(now)
	h.version++
	h.deps.Broadcaster.NotifyUpdate(h.eventLocked(ports.EventStarted, now))
	h.scheduleSave()
	h.advanceLocked(now)
	return h.viewLocked(now), nil
}

// SubmitMove plays token for playerID. The returned view reflects the state
// after the call whether or not the move was accepted.
func (h *HostedGame) SubmitMove(playerID, token string, now time.Time) (View, error) {
	return h.submitMove(playerID, token, nil, now)
}

// SubmitMoveAtVersion is SubmitMove that refuses with ErrVersionConflict
// unless the game is still at version expected.
func (h *HostedGame) SubmitMoveAtVersion(playerID, token string, expected int, now time.Time) (View, error) {
	return h.submitMove(playerID, token, &expected, now)
}

func (h *HostedGame) submitMove(playerID, token string, expected *int, now time.Time) (View, error) {
	m, err := move.Parse(token)
	if err != nil {
		metrics.MovesRejected.WithLabelValues("format").Inc()
		return View{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return h.viewLocked(now), err
	}
	if expected != nil && *expected != h.version {
		return h.viewLocked(now), ports.ErrVersionConflict
	}
	if err := h.playLocked(player, m, now, "human"); err != nil {
		metrics.MovesRejected.WithLabelValues(rejectReason(err)).Inc()
		return h.viewLocked(now), err
	}
	return h.viewLocked(now), nil
}

// SubmitPremove queues token for playerID while it is the opponent's turn.
// A newer premove replaces the older one.
func (h *HostedGame) SubmitPremove(playerID, token string, now time.Time) (Premove, error) {
	m, err := move.Parse(token)
	if err != nil {
		return Premove{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return Premove{}, err
	}
	h.expireLocked(now)
	if h.game.State() != game.StatePlaying {
		return Premove{}, fmt.Errorf("%w: %w", game.ErrIllegalMove, game.ErrGameNotPlaying)
	}
	if player == h.game.CurrentPlayer() {
		return Premove{}, ErrPremoveOnTurn
	}
	if m.IsStone() {
		if err := h.game.CheckMove(m); err != nil {
			return Premove{}, err
		}
	}

	pm := Premove{Move: m, MoveIndex: h.game.MoveCount()}
	h.premoves[player] = &pm
	return pm, nil
}

// CancelPremove drops playerID's queued premove.
func (h *HostedGame) CancelPremove(playerID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return err
	}
	if h.premoves[player] == nil {
		return ErrNoPremove
	}
	h.premoves[player] = nil
	return nil
}

func (h *HostedGame) Resign(playerID string, now time.Time) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return h.viewLocked(now), err
	}
	h.expireLocked(now)
	if err := h.game.Resign(player, now); err != nil {
		return h.viewLocked(now), err
	}
	h.version++
	h.finishLocked(now)
	h.scheduleSave()
	return h.viewLocked(now), nil
}

// Forfeit ends the game against loser, e.g. after an abandoned connection.
func (h *HostedGame) Forfeit(loser int, now time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forfeitLocked(loser, now)
}

func (h *HostedGame) forfeitLocked(loser int, now time.Time) error {
	h.expireLocked(now)
	if err := h.game.Forfeit(loser, now); err != nil {
		return err
	}
	h.version++
	h.finishLocked(now)
	h.scheduleSave()
	return nil
}

// Cancel aborts a game that has not started or where both players have not
// yet moved.
func (h *HostedGame) Cancel(playerID string, now time.Time) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.seatOf(playerID); err != nil {
		return h.viewLocked(now), err
	}
	h.expireLocked(now)
	switch {
	case h.game.State() == game.StateCreated:
	case h.game.State() == game.StatePlaying && h.game.MoveCount() < 2:
	default:
		return h.viewLocked(now), ErrCancelNotAllowed
	}
	if err := h.game.Cancel(now); err != nil {
		return h.viewLocked(now), err
	}
	h.version++
	h.finishLocked(now)
	h.scheduleSave()
	return h.viewLocked(now), nil
}

// RequestTakeback asks the opponent to take back the requester's last move.
// Bots accept at once.
func (h *HostedGame) RequestTakeback(playerID string, now time.Time) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return h.viewLocked(now), err
	}
	h.expireLocked(now)
	if h.game.State() != game.StatePlaying {
		return h.viewLocked(now), game.ErrGameNotPlaying
	}
	if h.takeback != -1 {
		return h.viewLocked(now), ErrTakebackPending
	}
	if h.game.MoveCount() <= player {
		return h.viewLocked(now), ErrTakebackNotAllowed
	}

	h.takeback = player
	if h.seats[1-player].IsBot() {
		err := h.acceptTakebackLocked(now)
		return h.viewLocked(now), err
	}
	h.deps.Broadcaster.NotifyUpdate(h.eventLocked(ports.EventTakeback, now))
	return h.viewLocked(now), nil
}

// AnswerTakeback lets the opponent of the requester accept or reject.
func (h *HostedGame) AnswerTakeback(playerID string, accept bool, now time.Time) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	player, err := h.seatOf(playerID)
	if err != nil {
		return h.viewLocked(now), err
	}
	if h.takeback == -1 {
		return h.viewLocked(now), ErrNoTakeback
	}
	if player == h.takeback {
		return h.viewLocked(now), ErrTakebackNotAllowed
	}
	if !accept {
		h.takeback = -1
		h.deps.Broadcaster.NotifyUpdate(h.eventLocked(ports.EventTakeback, now))
		return h.viewLocked(now), nil
	}
	err = h.acceptTakebackLocked(now)
	return h.viewLocked(now), err
}

// Undo removes the last n moves and rebuilds the clocks from the remaining
// history.
func (h *HostedGame) Undo(n int, now time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.undoLocked(n, now)
}

// Tick flags an elapsed clock, re-requests a bot move that is missing and
// retries a save that failed.
func (h *HostedGame) Tick(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expireLocked(now)
	h.requestAILocked()
	if h.saved < h.version && !h.saver.Busy() {
		h.scheduleSave()
	}
}

// Save waits for a persist cycle that covers the current state.
func (h *HostedGame) Save(ctx context.Context) (int, error) {
	return h.saver.Save().Wait(ctx)
}

// Settled reports whether the game is terminal and its final state is stored.
func (h *HostedGame) Settled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.game.Terminal() && h.saved >= h.version
}

func (h *HostedGame) close() { h.cancel() }

func (h *HostedGame) seatOf(playerID string) (int, error) {
	if playerID == "" {
		return -1, ErrNotAPlayer
	}
	cur := h.game.CurrentPlayer()
	for _, p := range [2]int{cur, 1 - cur} {
		if s := h.seats[p]; !s.IsBot() && s.PlayerID == playerID {
			return p, nil
		}
	}
	return -1, ErrNotAPlayer
}

// playLocked applies a move and then lets queued premoves and bots follow.
func (h *HostedGame) playLocked(player int, m move.Move, now time.Time, source string) error {
	if err := h.applyLocked(player, m, now); err != nil {
		return err
	}
	metrics.MovesApplied.WithLabelValues(source).Inc()
	h.advanceLocked(now)
	return nil
}

func (h *HostedGame) applyLocked(player int, m move.Move, now time.Time) error {
	if h.game.State() != game.StatePlaying {
		return h.game.CheckMove(m)
	}
	if h.expireLocked(now) {
		return fmt.Errorf("%w: player %d", timecontrol.ErrElapsed, h.game.CurrentPlayer())
	}
	if player != h.game.CurrentPlayer() {
		return ErrNotYourTurn
	}
	if err := h.game.CheckMove(m); err != nil {
		return err
	}
	if err := h.clock.Push(player, now); err != nil {
		h.expireLocked(now)
		return err
	}
	if err := h.game.ApplyMove(m, now); err != nil {
		h.rebuildClockLocked()
		return err
	}

	h.version++
	h.takeback = -1
	ev := h.eventLocked(ports.EventMove, now)
	ev.Move = m.String()
	ev.MoveIndex = h.game.MoveCount() - 1
	h.deps.Broadcaster.NotifyMove(ev)

	if h.game.Terminal() {
		h.finishLocked(now)
	}
	h.scheduleSave()
	return nil
}

// advanceLocked plays premoves that became due and asks a bot to move.
func (h *HostedGame) advanceLocked(now time.Time) {
	for h.game.State() == game.StatePlaying {
		cur := h.game.CurrentPlayer()
		pm := h.premoves[cur]
		if pm == nil {
			break
		}
		h.premoves[cur] = nil
		if pm.MoveIndex+1 != h.game.MoveCount() {
			metrics.PremovesDiscarded.Inc()
			continue
		}
		if err := h.applyLocked(cur, pm.Move, now); err != nil {
			metrics.PremovesDiscarded.Inc()
			h.log.Debug("premove dropped", zap.String("move", pm.Move.String()), zap.Error(err))
			continue
		}
		metrics.MovesApplied.WithLabelValues("premove").Inc()
	}
	h.requestAILocked()
}

// expireLocked ends the game by time if the running clock ran out by now.
func (h *HostedGame) expireLocked(now time.Time) bool {
	if h.game.State() != game.StatePlaying {
		return false
	}
	loser, at, ok := h.clock.CheckElapsed(now)
	if !ok {
		return false
	}
	if err := h.game.SetOutcomeByTime(loser, at); err != nil {
		h.log.Error("set outcome by time", zap.Error(err))
		return false
	}
	h.version++
	h.finishLocked(at)
	h.scheduleSave()
	return true
}

func (h *HostedGame) finishLocked(at time.Time) {
	h.clock.Stop(at)
	h.premoves = [2]*Premove{}
	h.takeback = -1

	outcome := string(h.game.Outcome())
	if h.game.State() == game.StateCanceled {
		outcome = string(game.StateCanceled)
	}
	metrics.GamesEnded.WithLabelValues(outcome).Inc()
	h.log.Info("game finished",
		zap.String("state", string(h.game.State())),
		zap.String("outcome", string(h.game.Outcome())),
		zap.Int("winner", h.game.Winner()),
		zap.Int("moves", h.game.MoveCount()),
	)
	h.deps.Broadcaster.NotifyGameEnded(h.eventLocked(ports.EventEnded, at))
}

func (h *HostedGame) acceptTakebackLocked(now time.Time) error {
	requester := h.takeback
	h.takeback = -1
	n := 1
	if h.game.CurrentPlayer() == requester {
		n = 2
	}
	if n > h.game.MoveCount() {
		n = h.game.MoveCount()
	}
	return h.undoLocked(n, now)
}

func (h *HostedGame) undoLocked(n int, now time.Time) error {
	if h.game.State() != game.StatePlaying {
		return fmt.Errorf("%w: %w", game.ErrUndoNotAllowed, game.ErrGameNotPlaying)
	}
	if h.expireLocked(now) {
		return fmt.Errorf("%w: player %d", timecontrol.ErrElapsed, h.game.CurrentPlayer())
	}
	history := h.game.History()
	if n < 1 || n > len(history) {
		return fmt.Errorf("%w: cannot take back %d of %d moves", game.ErrUndoNotAllowed, n, len(history))
	}

	clock, err := timecontrol.Replay(h.cfg.TimeControl, h.game.StartedAt(), pushes(history[:len(history)-n]))
	if err != nil {
		return err
	}
	elapsed := clock.State(now) == timecontrol.StateElapsed
	if elapsed && h.opts.UndoPolicy == UndoReject {
		return ErrUndoElapsed
	}

	if err := h.game.Undo(n); err != nil {
		return err
	}
	h.clock = clock
	h.premoves = [2]*Premove{}
	h.takeback = -1
	h.version++

	if elapsed {
		if err := h.game.Cancel(now); err != nil {
			return err
		}
		h.log.Warn("undo left an elapsed clock, game canceled", zap.Int("undone", n))
		h.finishLocked(now)
		h.scheduleSave()
		return nil
	}

	h.deps.Broadcaster.NotifyUpdate(h.eventLocked(ports.EventUndo, now))
	h.scheduleSave()
	h.advanceLocked(now)
	return nil
}

func (h *HostedGame) rebuildClockLocked() {
	clock, err := timecontrol.Replay(h.cfg.TimeControl, h.game.StartedAt(), pushes(h.game.History()))
	if err != nil && !errors.Is(err, timecontrol.ErrElapsed) {
		h.log.Error("rebuild clock", zap.Error(err))
		return
	}
	h.clock = clock
}

func (h *HostedGame) scheduleSave() {
	h.saver.Save()
}

// persist runs on the autosave goroutine.
func (h *HostedGame) persist(ctx context.Context) (int, error) {
	h.mu.Lock()
	rec := h.recordLocked()
	h.mu.Unlock()

	if err := h.deps.Store.Save(ctx, rec); err != nil {
		metrics.Saves.WithLabelValues("error").Inc()
		h.log.Error("save game", zap.Int("version", rec.StateVersion), zap.Error(err))
		return 0, err
	}
	metrics.Saves.WithLabelValues("ok").Inc()

	h.mu.Lock()
	if rec.StateVersion > h.saved {
		h.saved = rec.StateVersion
	}
	h.mu.Unlock()
	return rec.StateVersion, nil
}

func pushes(history []game.MoveRecord) []timecontrol.Push {
	out := make([]timecontrol.Push, len(history))
	for i, rec := range history {
		out[i] = timecontrol.Push{Player: i % 2, PlayedAt: rec.PlayedAt}
	}
	return out
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return "turn"
	case errors.Is(err, timecontrol.ErrElapsed):
		return "time"
	case errors.Is(err, game.ErrIllegalMove):
		return "illegal"
	default:
		return "other"
	}
}
