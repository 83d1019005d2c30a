package session

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/ports"
)

var (
	ErrNotAPlayer         = errors.New("not_a_player")
	ErrNotYourTurn        = errors.New("not_your_turn")
	ErrPremoveOnTurn      = errors.New("premove_on_own_turn")
	ErrNoPremove          = errors.New("no_premove")
	ErrTakebackPending    = errors.New("takeback_already_requested")
	ErrNoTakeback         = errors.New("no_takeback_request")
	ErrTakebackNotAllowed = errors.New("takeback_not_allowed")
	ErrCancelNotAllowed   = errors.New("cancel_not_allowed")
	ErrUndoElapsed        = errors.New("undo_would_elapse_clock")
	ErrInvalidSeats       = errors.New("invalid_seats")
)

// UndoPolicy decides what happens when an undo rebuilds a clock that has
// already run out.
type UndoPolicy string

const (
	// UndoCancel applies the undo and cancels the game.
	UndoCancel UndoPolicy = "cancel"
	// UndoReject refuses the undo and leaves the game untouched.
	UndoReject UndoPolicy = "reject"
)

// Now is the wall clock used for move timestamps. Clocks count whole
// milliseconds, and stores keep at most microseconds, so timestamps are
// truncated to keep replays exact.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type Options struct {
	SaveTimeout time.Duration
	AITimeout   time.Duration
	UndoPolicy  UndoPolicy
	// MaxAIFailures is how many failed answers in a row a bot seat may give
	// before it forfeits.
	MaxAIFailures int
	// Now stamps moves that arrive asynchronously from AI sources.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.AITimeout <= 0 {
		o.AITimeout = 10 * time.Second
	}
	if o.MaxAIFailures <= 0 {
		o.MaxAIFailures = 3
	}
	if o.UndoPolicy == "" {
		o.UndoPolicy = UndoCancel
	}
	if o.Now == nil {
		o.Now = Now
	}
	return o
}

// Deps are the collaborators shared by every hosted game.
type Deps struct {
	Store       ports.GameStore
	Broadcaster ports.Broadcaster
	AI          map[ports.SeatKind]ports.AIMoveSource
	Log         *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Broadcaster == nil {
		d.Broadcaster = nopBroadcaster{}
	}
	return d
}

type nopBroadcaster struct{}

func (nopBroadcaster) NotifyMove(ports.Event)      {}
func (nopBroadcaster) NotifyGameEnded(ports.Event) {}
func (nopBroadcaster) NotifyUpdate(ports.Event)    {}
