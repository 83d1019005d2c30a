package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randomtoy/hex-backend/internal/adapters/memory"
	"github.com/randomtoy/hex-backend/internal/domain/timecontrol"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(msec int64) time.Time { return t0.Add(time.Duration(msec) * time.Millisecond) }

type recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recorder) add(ev ports.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) NotifyMove(ev ports.Event)      { r.add(ev) }
func (r *recorder) NotifyGameEnded(ev ports.Event) { r.add(ev) }
func (r *recorder) NotifyUpdate(ev ports.Event)    { r.add(ev) }

func (r *recorder) types() []ports.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// scriptedAI answers with the moves pushed to its channel.
type scriptedAI struct {
	moves chan string
	calls atomic.Int32
}

func newScriptedAI(buffer int) *scriptedAI {
	return &scriptedAI{moves: make(chan string, buffer)}
}

func (a *scriptedAI) RequestMove(ctx context.Context, _ ports.AIRequest) (string, error) {
	a.calls.Add(1)
	select {
	case m := <-a.moves:
		return m, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fixture struct {
	store *memory.Store
	bc    *recorder
	ai    *scriptedAI
	reg   *session.Registry
}

func newFixture(t *testing.T, opts session.Options) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{store: memory.New(), bc: &recorder{}, ai: newScriptedAI(8)}
	if opts.Now == nil {
		opts.Now = func() time.Time { return at(500) }
	}
	f.reg = session.NewRegistry(ctx, session.Deps{
		Store:       f.store,
		Broadcaster: f.bc,
		AI:          map[ports.SeatKind]ports.AIMoveSource{ports.SeatLocalBot: f.ai},
	}, opts)
	t.Cleanup(func() {
		f.reg.Close()
		cancel()
	})
	return f
}

var fischer10s = timecontrol.Config{Kind: timecontrol.KindFischer, InitialMs: 10000}

func humans() [2]ports.Seat {
	return [2]ports.Seat{{PlayerID: "alice"}, {PlayerID: "bob"}}
}

func (f *fixture) create(t *testing.T, size int, tc timecontrol.Config, seats [2]ports.Seat) *session.HostedGame {
	t.Helper()
	h, err := f.reg.Create(context.Background(), session.CreateParams{
		Config: ports.GameConfig{Size: size, AllowSwap: true, TimeControl: tc},
		Seats:  seats,
		Start:  true,
	}, t0)
	require.NoError(t, err)
	return h
}

func submit(t *testing.T, h *session.HostedGame, player, token string, now time.Time) session.View {
	t.Helper()
	v, err := h.SubmitMove(player, token, now)
	require.NoError(t, err, "%s plays %s", player, token)
	return v
}

func tokens(v session.View) []string {
	out := make([]string, len(v.Moves))
	for i, m := range v.Moves {
		out[i] = m.Move
	}
	return out
}
