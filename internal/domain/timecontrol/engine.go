package timecontrol

import (
	"errors"
	"fmt"
	"time"
)

// State of the engine.
type State string

const (
	StateReady   State = "ready"
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateElapsed State = "elapsed"
)

var (
	ErrNotRunning      = errors.New("time_control_not_running")
	ErrNotActivePlayer = errors.New("time_control_not_active_player")
	// ErrElapsed is the time control error: the player's time ran out before
	// the push, so the move must not be applied.
	ErrElapsed = errors.New("time_elapsed")
)

// PlayerClock is a player's budget as of the instant their clock last
// started (or stopped) running.
type PlayerClock struct {
	RemainingMs int64
	PeriodsLeft int
	Overtime    bool
}

// TimeValue is what RemainingTime reports. A running clock carries the
// instant the current main time or period runs out.
type TimeValue struct {
	Running     bool      `json:"running"`
	Unlimited   bool      `json:"unlimited,omitempty"`
	RemainingMs int64     `json:"remaining_ms"`
	PeriodsLeft int       `json:"periods_left,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Push is one move timestamp fed to Replay.
type Push struct {
	Player   int
	PlayedAt time.Time
}

// Engine tracks both clocks. At most one clock runs at a time.
type Engine struct {
	cfg          Config
	state        State
	clocks       [2]PlayerClock
	active       int
	runningSince time.Time
	started      bool

	loser     int
	elapsedAt time.Time
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, state: StateReady, loser: -1}, nil
}

// Replay rebuilds an engine from the start instant and the move timestamps.
func Replay(cfg Config, startedAt time.Time, pushes []Push) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	e.Start(startedAt)
	for i, p := range pushes {
		if err := e.Push(p.Player, p.PlayedAt); err != nil {
			return e, fmt.Errorf("replay push %d: %w", i, err)
		}
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Active returns the player whose clock runs, or -1.
func (e *Engine) Active() int {
	if e.state != StateRunning {
		return -1
	}
	return e.active
}

// Start sets both clocks to the initial budget and runs player 0's clock.
func (e *Engine) Start(at time.Time) {
	initial := PlayerClock{RemainingMs: e.cfg.InitialMs}
	if e.cfg.Kind == KindByoYomi {
		initial.PeriodsLeft = e.cfg.Periods
	}
	e.clocks = [2]PlayerClock{initial, initial}
	e.active = 0
	e.runningSince = at
	e.state = StateRunning
	e.started = true
	e.loser = -1
	e.elapsedAt = time.Time{}
}

// Push charges player for the move played at playedAt and starts the
// opponent's clock. A push at or after the player's expiry flags the engine
// as elapsed and returns ErrElapsed.
func (e *Engine) Push(player int, playedAt time.Time) error {
	switch e.state {
	case StateElapsed:
		return fmt.Errorf("%w: player %d", ErrElapsed, e.loser)
	case StateRunning:
	default:
		return ErrNotRunning
	}
	if player != e.active {
		return fmt.Errorf("%w: %d", ErrNotActivePlayer, player)
	}

	c, ok := e.project(e.clocks[player], spentMs(e.runningSince, playedAt))
	if !ok {
		e.flag()
		return fmt.Errorf("%w: player %d", ErrElapsed, player)
	}

	switch e.cfg.Kind {
	case KindFischer:
		c.RemainingMs += e.cfg.IncrementMs
		if e.cfg.MaxMs > 0 && c.RemainingMs > e.cfg.MaxMs {
			c.RemainingMs = e.cfg.MaxMs
		}
	case KindByoYomi:
		if c.Overtime {
			c.RemainingMs = e.cfg.PeriodMs
		}
	}
	e.clocks[player] = c

	e.active = 1 - player
	if playedAt.After(e.runningSince) {
		e.runningSince = playedAt
	}
	return nil
}

// RemainingTime reports player's clock as of now without mutating anything.
func (e *Engine) RemainingTime(player int, now time.Time) TimeValue {
	c := e.clocks[player]
	if e.cfg.Kind == KindUnlimited {
		return TimeValue{Unlimited: true, Running: e.state == StateRunning && player == e.active}
	}
	switch {
	case !e.started:
		return TimeValue{RemainingMs: e.cfg.InitialMs, PeriodsLeft: e.initialPeriods()}
	case e.state == StateElapsed && player == e.loser:
		return TimeValue{}
	case e.state != StateRunning || player != e.active:
		return TimeValue{RemainingMs: c.RemainingMs, PeriodsLeft: c.PeriodsLeft}
	}

	pc, ok := e.project(c, spentMs(e.runningSince, now))
	if !ok {
		return TimeValue{Running: true, ExpiresAt: e.flagInstant()}
	}
	return TimeValue{
		Running:     true,
		RemainingMs: pc.RemainingMs,
		PeriodsLeft: pc.PeriodsLeft,
		ExpiresAt:   now.Add(time.Duration(pc.RemainingMs) * time.Millisecond),
	}
}

// Values is RemainingTime for both players.
func (e *Engine) Values(now time.Time) [2]TimeValue {
	return [2]TimeValue{e.RemainingTime(0, now), e.RemainingTime(1, now)}
}

// State reports the state as of now. A running clock that has run out reads
// as elapsed even before CheckElapsed flags it.
func (e *Engine) State(now time.Time) State {
	if e.state == StateRunning && e.expired(now) {
		return StateElapsed
	}
	return e.state
}

// CheckElapsed flags the engine when the active clock ran out by now and
// returns the losing player and the instant their time expired.
func (e *Engine) CheckElapsed(now time.Time) (int, time.Time, bool) {
	if e.state == StateRunning && e.expired(now) {
		e.flag()
	}
	if e.state != StateElapsed {
		return -1, time.Time{}, false
	}
	return e.loser, e.elapsedAt, true
}

// Stop freezes both clocks at at. If the active clock already ran out the
// engine ends up elapsed instead.
func (e *Engine) Stop(at time.Time) {
	if e.state != StateRunning {
		if e.state == StateReady {
			e.state = StateStopped
		}
		return
	}
	c, ok := e.project(e.clocks[e.active], spentMs(e.runningSince, at))
	if !ok {
		e.flag()
		return
	}
	e.clocks[e.active] = c
	e.state = StateStopped
}

func (e *Engine) expired(now time.Time) bool {
	_, ok := e.project(e.clocks[e.active], spentMs(e.runningSince, now))
	return !ok
}

func (e *Engine) flag() {
	e.loser = e.active
	e.elapsedAt = e.flagInstant()
	e.clocks[e.active] = PlayerClock{Overtime: e.clocks[e.active].Overtime}
	e.state = StateElapsed
}

// flagInstant is when the active player's last period runs out.
func (e *Engine) flagInstant() time.Time {
	c := e.clocks[e.active]
	total := c.RemainingMs
	if e.cfg.Kind == KindByoYomi {
		total += int64(c.PeriodsLeft) * e.cfg.PeriodMs
	}
	return e.runningSince.Add(time.Duration(total) * time.Millisecond)
}

// project charges spent ms against c. It reports false when the budget,
// periods included, is exhausted.
func (e *Engine) project(c PlayerClock, spent int64) (PlayerClock, bool) {
	switch e.cfg.Kind {
	case KindUnlimited:
		return c, true
	case KindFischer:
		if spent < c.RemainingMs {
			c.RemainingMs -= spent
			return c, true
		}
		return PlayerClock{}, false
	}

	if spent < c.RemainingMs {
		c.RemainingMs -= spent
		return c, true
	}
	over := spent - c.RemainingMs
	need := 1 + over/e.cfg.PeriodMs
	if need > int64(c.PeriodsLeft) {
		return PlayerClock{}, false
	}
	c.PeriodsLeft -= int(need)
	c.RemainingMs = e.cfg.PeriodMs - over%e.cfg.PeriodMs
	c.Overtime = true
	return c, true
}

func (e *Engine) initialPeriods() int {
	if e.cfg.Kind == KindByoYomi {
		return e.cfg.Periods
	}
	return 0
}

func spentMs(from, to time.Time) int64 {
	d := to.Sub(from).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}
