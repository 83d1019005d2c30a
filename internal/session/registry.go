package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/randomtoy/hex-backend/internal/domain/game"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/metrics"
	"github.com/randomtoy/hex-backend/internal/ports"
)

// CreateParams describes a new game.
type CreateParams struct {
	Config ports.GameConfig
	Seats  [2]ports.Seat
	Start  bool
}

// Registry keeps exactly one HostedGame per live game id.
type Registry struct {
	ctx  context.Context
	deps Deps
	opts Options

	mu    sync.RWMutex
	games map[uuid.UUID]*HostedGame
	loads singleflight.Group
}

// NewRegistry returns an empty registry. ctx bounds the lifetime of every
// hosted game, including pending AI requests and saves.
func NewRegistry(ctx context.Context, deps Deps, opts Options) *Registry {
	return &Registry{
		ctx:   ctx,
		deps:  deps.withDefaults(),
		opts:  opts.withDefaults(),
		games: make(map[uuid.UUID]*HostedGame),
	}
}

// Create hosts a new game and stores it before returning.
func (r *Registry) Create(ctx context.Context, p CreateParams, now time.Time) (*HostedGame, error) {
	if err := p.Config.Board().Validate(); err != nil {
		return nil, err
	}
	if err := p.Config.TimeControl.Validate(); err != nil {
		return nil, err
	}
	if err := r.validateSeats(p.Seats); err != nil {
		return nil, err
	}

	g, err := game.New(p.Config.Board(), now)
	if err != nil {
		return nil, err
	}
	clock, err := timecontrol.New(p.Config.TimeControl)
	if err != nil {
		return nil, err
	}

	h := newHosted(r.ctx, uuid.New(), p.Config, p.Seats, g, clock, 1, r.deps, r.opts)
	if _, err := h.Save(ctx); err != nil {
		h.close()
		return nil, fmt.Errorf("store new game: %w", err)
	}
	r.add(h)

	if p.Start {
		if _, err := h.Start(now); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Get returns the hosted game, loading and replaying it from the store if it
// is not in memory. Concurrent loads of the same id share one result.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*HostedGame, error) {
	if h, ok := r.lookup(id); ok {
		return h, nil
	}

	v, err, _ := r.loads.Do(id.String(), func() (any, error) {
		if h, ok := r.lookup(id); ok {
			return h, nil
		}
		rec, err := r.deps.Store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		h, err := r.host(rec)
		if err != nil {
			return nil, err
		}
		return r.add(h), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*HostedGame), nil
}

// ResumeActive hosts every stored game that is not terminal. Records that
// fail to replay are logged and skipped.
func (r *Registry) ResumeActive(ctx context.Context) (int, error) {
	recs, err := r.deps.Store.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range recs {
		if _, ok := r.lookup(rec.ID); ok {
			continue
		}
		h, err := r.host(rec)
		if err != nil {
			r.deps.Log.Error("resume game", zap.String("game_id", rec.ID.String()), zap.Error(err))
			continue
		}
		r.add(h)
		n++
	}
	return n, nil
}

// Active returns the games currently in memory.
func (r *Registry) Active() []*HostedGame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*HostedGame, 0, len(r.games))
	for _, h := range r.games {
		out = append(out, h)
	}
	return out
}

// Sweep ticks every hosted game and releases the ones that are finished and
// stored.
func (r *Registry) Sweep(now time.Time) {
	for _, h := range r.Active() {
		h.Tick(now)
		if h.Settled() {
			r.forget(h)
		}
	}
}

// Flush waits until every hosted game has been stored.
func (r *Registry) Flush(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range r.Active() {
		g.Go(func() error {
			if _, err := h.Save(ctx); err != nil {
				return fmt.Errorf("flush %s: %w", h.ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close stops every hosted game.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.games {
		h.close()
		delete(r.games, id)
	}
	metrics.HostedGames.Set(0)
}

func (r *Registry) host(rec ports.GameRecord) (*HostedGame, error) {
	snap, err := snapshotFromRecord(rec)
	if err != nil {
		return nil, err
	}
	g, err := game.Restore(snap)
	if err != nil {
		return nil, err
	}

	var clock *timecontrol.Engine
	if g.StartedAt().IsZero() {
		clock, err = timecontrol.New(rec.Config.TimeControl)
	} else {
		clock, err = timecontrol.Replay(rec.Config.TimeControl, g.StartedAt(), pushes(g.History()))
		if errors.Is(err, timecontrol.ErrElapsed) && g.Terminal() {
			err = nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("rebuild clock: %w", err)
	}
	if g.Terminal() {
		clock.Stop(g.EndedAt())
	}

	h := newHosted(r.ctx, rec.ID, rec.Config, rec.Seats, g, clock, rec.StateVersion, r.deps, r.opts)
	h.saved = rec.StateVersion
	return h, nil
}

func (r *Registry) validateSeats(seats [2]ports.Seat) error {
	for i, s := range seats {
		if !s.IsBot() {
			if s.PlayerID == "" {
				return fmt.Errorf("%w: seat %d has no player", ErrInvalidSeats, i)
			}
			continue
		}
		if _, ok := r.deps.AI[s.Kind]; !ok {
			return fmt.Errorf("%w: seat %d has unknown kind %q", ErrInvalidSeats, i, s.Kind)
		}
	}
	return nil
}

func (r *Registry) lookup(id uuid.UUID) (*HostedGame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.games[id]
	return h, ok
}

// add stores h unless another instance won the race, which is returned
// instead.
func (r *Registry) add(h *HostedGame) *HostedGame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.games[h.id]; ok {
		h.close()
		return existing
	}
	r.games[h.id] = h
	metrics.HostedGames.Set(float64(len(r.games)))
	return h
}

func (r *Registry) forget(h *HostedGame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.games[h.id] == h {
		delete(r.games, h.id)
		h.close()
	}
	metrics.HostedGames.Set(float64(len(r.games)))
}
