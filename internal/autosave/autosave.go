// Package autosave coalesces concurrent save requests for a single resource:
// at most one persist call runs at a time and at most one more is queued.
package autosave

import (
	"context"
	"sync"
	"time"
)

// PersistFunc writes the current state of the resource. It is called from a
// background goroutine and must read the state itself, so a queued cycle
// always stores the newest state.
type PersistFunc[T any] func(ctx context.Context) (T, error)

// Pending is the result of one save cycle, shared by every caller that
// joined it.
type Pending[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// Done is closed once the cycle finished.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Wait blocks until the cycle finished or ctx is done.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pending[T]) resolve(v T, err error) {
	p.val, p.err = v, err
	close(p.done)
}

// Saver runs persist cycles for one resource.
type Saver[T any] struct {
	ctx     context.Context
	persist PersistFunc[T]
	timeout time.Duration

	mu      sync.Mutex
	running bool
	queued  *Pending[T]
}

// New returns a Saver. ctx bounds every cycle; timeout, when positive, bounds
// each persist call.
func New[T any](ctx context.Context, persist PersistFunc[T], timeout time.Duration) *Saver[T] {
	return &Saver[T]{ctx: ctx, persist: persist, timeout: timeout}
}

// Save requests a cycle without blocking. If a cycle is in flight the request
// joins the single queued cycle, which starts when the current one finishes
// whatever its result.
func (s *Saver[T]) Save() *Pending[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queued != nil {
		return s.queued
	}
	p := newPending[T]()
	if s.running {
		s.queued = p
		return p
	}
	s.running = true
	go s.loop(p)
	return p
}

// Busy reports whether a cycle is in flight.
func (s *Saver[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Saver[T]) loop(p *Pending[T]) {
	for p != nil {
		p.resolve(s.runOnce())

		s.mu.Lock()
		p, s.queued = s.queued, nil
		if p == nil {
			s.running = false
		}
		s.mu.Unlock()
	}
}

func (s *Saver[T]) runOnce() (T, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.persist(ctx)
}
