package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/randomtoy/hex-backend/internal/ports"
)

// Store is a thread-safe in-memory GameStore.
type Store struct {
	mu    sync.Mutex
	games map[uuid.UUID]ports.GameRecord
}

func New() *Store {
	return &Store{games: make(map[uuid.UUID]ports.GameRecord)}
}

func (s *Store) Load(_ context.Context, id uuid.UUID) (ports.GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.games[id]
	if !ok {
		return ports.GameRecord{}, ports.ErrNotFound
	}
	return clone(rec), nil
}

// Save keeps the record unless a newer StateVersion is already stored.
func (s *Store) Save(_ context.Context, rec ports.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.games[rec.ID]; ok && cur.StateVersion > rec.StateVersion {
		return ports.ErrVersionConflict
	}
	s.games[rec.ID] = clone(rec)
	return nil
}

func (s *Store) ListActive(_ context.Context) ([]ports.GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.GameRecord
	for _, rec := range s.games {
		if rec.Active() {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func clone(rec ports.GameRecord) ports.GameRecord {
	rec.Moves = append([]ports.MoveEntry(nil), rec.Moves...)
	return rec
}
