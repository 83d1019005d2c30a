package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/randomtoy/hex-backend/internal/domain/board"
	"github.com/randomtoy/hex-backend/internal/domain/move"
)

// State values of the game lifecycle.
type State string

const (
	StateCreated  State = "created"
	StatePlaying  State = "playing"
	StateEnded    State = "ended"
	StateCanceled State = "canceled"
)

// Outcome says how an ended game was decided.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomePath    Outcome = "path"
	OutcomeResign  Outcome = "resign"
	OutcomeTime    Outcome = "time"
	OutcomeForfeit Outcome = "forfeit"
)

// NoWinner is the winner of a game that is not ended.
const NoWinner = -1

// MaxConsecutivePasses is how many passes may follow each other.
const MaxConsecutivePasses = 2

// Sentinel errors; transport layer maps these to HTTP codes. Every rejected
// move wraps ErrIllegalMove.
var (
	ErrIllegalMove    = errors.New("illegal_move")
	ErrGameNotPlaying = errors.New("game_not_playing")
	ErrSwapNotAllowed = errors.New("swap_not_allowed")
	ErrPassLimit      = errors.New("pass_limit")
	ErrUndoNotAllowed = errors.New("undo_not_allowed")
	ErrAlreadyStarted = errors.New("game_already_started")
	ErrInvalidConfig  = errors.New("invalid_game_config")
	ErrCorruptHistory = errors.New("corrupt_history")
)

// Config is fixed for the lifetime of a game.
type Config struct {
	Size      int  `json:"size"`
	AllowSwap bool `json:"allow_swap"`
}

func (c Config) Validate() error {
	if c.Size < 1 || c.Size > move.MaxSize {
		return fmt.Errorf("%w: board size %d", ErrInvalidConfig, c.Size)
	}
	return nil
}

// MoveRecord is one entry of the history.
type MoveRecord struct {
	Move     move.Move
	PlayedAt time.Time
}

// Snapshot is everything needed to rebuild a Game. The board is derived.
type Snapshot struct {
	Config    Config
	State     State
	Outcome   Outcome
	Winner    int
	History   []MoveRecord
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// Game is the authoritative state of one match. It is not safe for
// concurrent use; the hosting session serializes access.
type Game struct {
	cfg     Config
	board   *board.Board
	history []MoveRecord
	state   State
	outcome Outcome
	winner  int

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time
}

func New(cfg Config, createdAt time.Time) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := board.New(cfg.Size)
	if err != nil {
		return nil, err
	}
	return &Game{
		cfg:       cfg,
		board:     b,
		state:     StateCreated,
		winner:    NoWinner,
		createdAt: createdAt,
	}, nil
}

// Restore rebuilds a game by replaying the stored history, then applies the
// stored terminal data.
func Restore(s Snapshot) (*Game, error) {
	g, err := New(s.Config, s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if s.State == StateCreated {
		if len(s.History) > 0 {
			return nil, fmt.Errorf("%w: moves in a game that never started", ErrCorruptHistory)
		}
		return g, nil
	}

	g.state = StatePlaying
	g.startedAt = s.StartedAt
	for i, rec := range s.History {
		if err := g.ApplyMove(rec.Move, rec.PlayedAt); err != nil {
			return nil, fmt.Errorf("%w: move %d %s: %w", ErrCorruptHistory, i, rec.Move, err)
		}
	}

	switch s.State {
	case StatePlaying:
		if g.state != StatePlaying {
			return nil, fmt.Errorf("%w: history is already decided", ErrCorruptHistory)
		}
	case StateEnded:
		if s.Outcome == OutcomeNone || (s.Winner != 0 && s.Winner != 1) {
			return nil, fmt.Errorf("%w: ended without outcome", ErrCorruptHistory)
		}
		g.finish(s.Outcome, s.Winner, s.EndedAt)
	case StateCanceled:
		g.state = StateCanceled
		g.outcome = OutcomeNone
		g.winner = NoWinner
		g.endedAt = s.EndedAt
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrCorruptHistory, s.State)
	}
	return g, nil
}

// Start moves a created game to playing.
func (g *Game) Start(at time.Time) error {
	if g.state != StateCreated {
		return ErrAlreadyStarted
	}
	g.state = StatePlaying
	g.startedAt = at
	return nil
}

func (g *Game) Config() Config       { return g.cfg }
func (g *Game) Size() int            { return g.cfg.Size }
func (g *Game) State() State         { return g.state }
func (g *Game) Outcome() Outcome     { return g.outcome }
func (g *Game) Winner() int          { return g.winner }
func (g *Game) MoveCount() int       { return len(g.history) }
func (g *Game) CreatedAt() time.Time { return g.createdAt }
func (g *Game) StartedAt() time.Time { return g.startedAt }
func (g *Game) EndedAt() time.Time   { return g.endedAt }

func (g *Game) Cell(c move.Coords) int { return g.board.At(c) }

// Terminal reports whether the game is ended or canceled.
func (g *Game) Terminal() bool {
	return g.state == StateEnded || g.state == StateCanceled
}

// CurrentPlayer is the player to move: 0 on even history lengths.
func (g *Game) CurrentPlayer() int { return len(g.history) % 2 }

// History returns a copy of the move records.
func (g *Game) History() []MoveRecord {
	out := make([]MoveRecord, len(g.history))
	copy(out, g.history)
	return out
}

// EmptyCells lists the cells still open for a stone.
func (g *Game) EmptyCells() []move.Coords { return g.board.EmptyCells() }

// ConsecutivePasses counts passes at the tail of the history.
func (g *Game) ConsecutivePasses() int {
	n := 0
	for i := len(g.history) - 1; i >= 0 && g.history[i].Move.Kind == move.KindPass; i-- {
		n++
	}
	return n
}

// CanSwap reports whether swap-pieces is legal right now.
func (g *Game) CanSwap() bool {
	return g.cfg.AllowSwap && len(g.history) == 1 && g.history[0].Move.IsStone()
}

// CheckMove runs every legality check except turn ownership.
func (g *Game) CheckMove(m move.Move) error {
	if g.state != StatePlaying {
		return fmt.Errorf("%w: %w", ErrIllegalMove, ErrGameNotPlaying)
	}
	switch m.Kind {
	case move.KindSwap:
		if !g.CanSwap() {
			return fmt.Errorf("%w: %w", ErrIllegalMove, ErrSwapNotAllowed)
		}
	case move.KindPass:
		if g.ConsecutivePasses() >= MaxConsecutivePasses {
			return fmt.Errorf("%w: %w", ErrIllegalMove, ErrPassLimit)
		}
	default:
		if !m.Coords.InBounds(g.cfg.Size) {
			return fmt.Errorf("%w: %w: %s", ErrIllegalMove, board.ErrOutOfBounds, m)
		}
		if g.board.At(m.Coords) != board.Empty {
			return fmt.Errorf("%w: %w: %s", ErrIllegalMove, board.ErrCellOccupied, m)
		}
	}
	return nil
}

// ApplyMove plays m for the current player. A stone that completes a
// connection ends the game by path.
func (g *Game) ApplyMove(m move.Move, playedAt time.Time) error {
	if err := g.CheckMove(m); err != nil {
		return err
	}
	player := g.CurrentPlayer()
	switch m.Kind {
	case move.KindPlace:
		if err := g.board.Place(m.Coords, player); err != nil {
			return fmt.Errorf("%w: %w", ErrIllegalMove, err)
		}
	case move.KindSwap:
		if err := g.swapFirstStone(); err != nil {
			return err
		}
	}
	g.history = append(g.history, MoveRecord{Move: m, PlayedAt: playedAt})

	if w := g.board.Winner(); w != board.Empty {
		g.finish(OutcomePath, w, playedAt)
	}
	return nil
}

func (g *Game) Resign(player int, at time.Time) error {
	return g.endBy(OutcomeResign, player, at)
}

// SetOutcomeByTime ends the game in favour of loser's opponent.
func (g *Game) SetOutcomeByTime(loser int, at time.Time) error {
	return g.endBy(OutcomeTime, loser, at)
}

func (g *Game) Forfeit(loser int, at time.Time) error {
	return g.endBy(OutcomeForfeit, loser, at)
}

// Cancel ends a created or playing game without a result.
func (g *Game) Cancel(at time.Time) error {
	if g.Terminal() {
		return ErrGameNotPlaying
	}
	g.state = StateCanceled
	g.endedAt = at
	return nil
}

// Undo removes the last n moves and rebuilds the board. The caller is
// responsible for rebuilding the clocks.
func (g *Game) Undo(n int) error {
	if g.state != StatePlaying {
		return fmt.Errorf("%w: %w", ErrUndoNotAllowed, ErrGameNotPlaying)
	}
	if n < 1 || n > len(g.history) {
		return fmt.Errorf("%w: cannot take back %d of %d moves", ErrUndoNotAllowed, n, len(g.history))
	}
	g.history = g.history[:len(g.history)-n]
	return g.rebuildBoard()
}

// Snapshot captures the persisted view of the game.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Config:    g.cfg,
		State:     g.state,
		Outcome:   g.outcome,
		Winner:    g.winner,
		History:   g.History(),
		CreatedAt: g.createdAt,
		StartedAt: g.startedAt,
		EndedAt:   g.endedAt,
	}
}

func (g *Game) endBy(outcome Outcome, loser int, at time.Time) error {
	if g.state != StatePlaying {
		return ErrGameNotPlaying
	}
	if loser != 0 && loser != 1 {
		return fmt.Errorf("%w: %d", board.ErrInvalidPlayer, loser)
	}
	g.finish(outcome, 1-loser, at)
	return nil
}

func (g *Game) finish(outcome Outcome, winner int, at time.Time) {
	g.state = StateEnded
	g.outcome = outcome
	g.winner = winner
	g.endedAt = at
}

// swapFirstStone hands the opening stone to player 1, mirrored so that it
// keeps its meaning for the other connection direction.
func (g *Game) swapFirstStone() error {
	b, err := board.New(g.cfg.Size)
	if err != nil {
		return err
	}
	if err := b.Place(g.history[0].Move.Coords.Mirror(), 1); err != nil {
		return fmt.Errorf("%w: %w", ErrIllegalMove, err)
	}
	g.board = b
	return nil
}

func (g *Game) rebuildBoard() error {
	b, err := board.New(g.cfg.Size)
	if err != nil {
		return err
	}
	g.board = b
	for i, rec := range g.history {
		switch rec.Move.Kind {
		case move.KindPlace:
			if err := g.board.Place(rec.Move.Coords, i%2); err != nil {
				return fmt.Errorf("%w: move %d: %w", ErrCorruptHistory, i, err)
			}
		case move.KindSwap:
			if err := g.swapFirstStone(); err != nil {
				return err
			}
		}
	}
	return nil
}
