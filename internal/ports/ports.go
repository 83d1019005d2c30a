package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
)

// Sentinel store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// SeatKind says who controls a seat.
type SeatKind string

const (
	SeatHuman    SeatKind = ""
	SeatLocalBot SeatKind = "local"
	SeatRemoteAI SeatKind = "remote"
)

// Seat binds a player identity to a side of the board.
type Seat struct {
	PlayerID string   `json:"player_id"`
	Kind     SeatKind `json:"kind,omitempty"`
}

func (s Seat) IsBot() bool { return s.Kind != SeatHuman }

// GameConfig is the full, immutable configuration of a hosted game.
type GameConfig struct {
	Size        int                `json:"size"`
	AllowSwap   bool               `json:"allow_swap"`
	TimeControl timecontrol.Config `json:"time_control"`
}

func (c GameConfig) Board() game.Config {
	return game.Config{Size: c.Size, AllowSwap: c.AllowSwap}
}

// MoveEntry is a persisted history entry.
type MoveEntry struct {
	Move     string    `json:"move"`
	PlayedAt time.Time `json:"played_at"`
}

// GameRecord is the persisted form of a game. Board and clocks are never
// stored; they are rebuilt from Moves and Config.
type GameRecord struct {
	ID           uuid.UUID    `json:"id"`
	Config       GameConfig   `json:"config"`
	Seats        [2]Seat      `json:"seats"`
	State        game.State   `json:"state"`
	Outcome      game.Outcome `json:"outcome,omitempty"`
	Winner       int          `json:"winner"`
	Moves        []MoveEntry  `json:"moves"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	StateVersion int          `json:"state_version"`
}

// Active reports whether the record still needs a live host.
func (r GameRecord) Active() bool {
	return r.State == game.StateCreated || r.State == game.StatePlaying
}

// GameStore is the persistence interface for games.
type GameStore interface {
	Load(ctx context.Context, id uuid.UUID) (GameRecord, error)
	// Save upserts rec unless the stored StateVersion is newer, in which
	// case it returns ErrVersionConflict.
	Save(ctx context.Context, rec GameRecord) error
	// ListActive returns every game in created or playing state.
	ListActive(ctx context.Context) ([]GameRecord, error)
}

// EventType names a broadcast event.
type EventType string

const (
	EventMove     EventType = "move"
	EventEnded    EventType = "ended"
	EventStarted  EventType = "started"
	EventUndo     EventType = "undo"
	EventTakeback EventType = "takeback"
)

// Event is pushed to subscribers of a game.
type Event struct {
	Type          EventType                `json:"type"`
	GameID        uuid.UUID                `json:"game_id"`
	Version       int                      `json:"version"`
	Move          string                   `json:"move,omitempty"`
	MoveIndex     int                      `json:"move_index"`
	State         game.State               `json:"state"`
	Outcome       game.Outcome             `json:"outcome,omitempty"`
	Winner        int                      `json:"winner"`
	CurrentPlayer int                      `json:"current_player"`
	Takeback      int                      `json:"takeback"`
	Clocks        [2]timecontrol.TimeValue `json:"clocks"`
}

// Broadcaster fans game events out to subscribers. Implementations must not
// block: they are called while the game is locked.
type Broadcaster interface {
	NotifyMove(ev Event)
	NotifyGameEnded(ev Event)
	NotifyUpdate(ev Event)
}

// AIRequest describes the position an AI must answer.
type AIRequest struct {
	GameID    uuid.UUID             `json:"game_id"`
	Size      int                   `json:"size"`
	Player    int                   `json:"player"`
	Moves     []string              `json:"moves"`
	CanSwap   bool                  `json:"can_swap"`
	Remaining timecontrol.TimeValue `json:"remaining"`
	Open      []move.Coords         `json:"-"`
}

// AIMoveSource produces a move token for the player to move.
type AIMoveSource interface {
	RequestMove(ctx context.Context, req AIRequest) (string, error)
}

// RateLimiter gates requests by IP and optional client token.
type RateLimiter interface {
	Allow(ctx context.Context, ip, token string) bool
}
