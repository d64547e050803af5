package resilience

import (
	"context"
	"runtime/debug"
	"time"
)

// Func is a unit of handler work. The context is cancelled once the guard
// stops waiting for it; work that ignores the context simply runs on and its
// outcome is discarded.
type Func func(ctx context.Context) (any, error)

// Guard bounds handler execution with a deadline.
type Guard struct {
	deadline time.Duration
}

// NewGuard returns a Guard for deadline. A zero or negative deadline expires
// immediately unless the handler wins the race.
func NewGuard(deadline time.Duration) *Guard {
	return &Guard{deadline: deadline}
}

// Deadline returns the configured deadline.
func (g *Guard) Deadline() time.Duration { return g.deadline }

type outcome struct {
	val any
	err error
}

// Run starts fn and a timer. Whichever signals first decides the outcome:
// fn's value and error pass through untouched, while an expired timer yields
// a fresh RequestTimeout matching ErrRequestTimeout. A panic in fn is
// returned as *PanicError.
func (g *Guard) Run(ctx context.Context, fn Func) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned handler can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: &PanicError{Value: rec, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{val: v, err: err}
	}()

	timer := time.NewTimer(max(g.deadline, 0))
	defer timer.Stop()

	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		return nil, RequestTimeout()
	}
}
