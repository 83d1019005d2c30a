package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/move"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
)

// View is a consistent copy of a hosted game taken under its lock.
type View struct {
	ID            uuid.UUID
	Config        ports.GameConfig
	Seats         [2]ports.Seat
	State         game.State
	Outcome       game.Outcome
	Winner        int
	CurrentPlayer int
	Moves         []ports.MoveEntry
	Clocks        [2]timecontrol.TimeValue
	Takeback      int
	Version       int
	CreatedAt     time.Time
	StartedAt     time.Time
	EndedAt       time.Time
}

func (h *HostedGame) viewLocked(now time.Time) View {
	current := -1
	if h.game.State() == game.StatePlaying {
		current = h.game.CurrentPlayer()
	}
	return View{
		ID:            h.id,
		Config:        h.cfg,
		Seats:         h.seats,
		State:         h.game.State(),
		Outcome:       h.game.Outcome(),
		Winner:        h.game.Winner(),
		CurrentPlayer: current,
		Moves:         toEntries(h.game.History()),
		Clocks:        h.clock.Values(now),
		Takeback:      h.takeback,
		Version:       h.version,
		CreatedAt:     h.game.CreatedAt(),
		StartedAt:     h.game.StartedAt(),
		EndedAt:       h.game.EndedAt(),
	}
}

func (h *HostedGame) eventLocked(typ ports.EventType, now time.Time) ports.Event {
	current := -1
	if h.game.State() == game.StatePlaying {
		current = h.game.CurrentPlayer()
	}
	return ports.Event{
		Type:          typ,
		GameID:        h.id,
		Version:       h.version,
		MoveIndex:     h.game.MoveCount() - 1,
		State:         h.game.State(),
		Outcome:       h.game.Outcome(),
		Winner:        h.game.Winner(),
		CurrentPlayer: current,
		Takeback:      h.takeback,
		Clocks:        h.clock.Values(now),
	}
}

func (h *HostedGame) recordLocked() ports.GameRecord {
	s := h.game.Snapshot()
	return ports.GameRecord{
		ID:           h.id,
		Config:       h.cfg,
		Seats:        h.seats,
		State:        s.State,
		Outcome:      s.Outcome,
		Winner:       s.Winner,
		Moves:        toEntries(s.History),
		CreatedAt:    s.CreatedAt,
		StartedAt:    optionalTime(s.StartedAt),
		EndedAt:      optionalTime(s.EndedAt),
		StateVersion: h.version,
	}
}

func toEntries(history []game.MoveRecord) []ports.MoveEntry {
	out := make([]ports.MoveEntry, len(history))
	for i, rec := range history {
		out[i] = ports.MoveEntry{Move: rec.Move.String(), PlayedAt: rec.PlayedAt}
	}
	return out
}

// snapshotFromRecord parses the stored history back into domain moves.
func snapshotFromRecord(rec ports.GameRecord) (game.Snapshot, error) {
	history := make([]game.MoveRecord, len(rec.Moves))
	for i, e := range rec.Moves {
		m, err := move.Parse(e.Move)
		if err != nil {
			return game.Snapshot{}, fmt.Errorf("%w: move %d: %w", game.ErrCorruptHistory, i, err)
		}
		history[i] = game.MoveRecord{Move: m, PlayedAt: e.PlayedAt}
	}
	s := game.Snapshot{
		Config:    rec.Config.Board(),
		State:     rec.State,
		Outcome:   rec.Outcome,
		Winner:    rec.Winner,
		History:   history,
		CreatedAt: rec.CreatedAt,
	}
	if rec.StartedAt != nil {
		s.StartedAt = *rec.StartedAt
	}
	if rec.EndedAt != nil {
		s.EndedAt = *rec.EndedAt
	}
	return s, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
