// Package dispatch provides the single control loop that owns capture and
// upload state. Background work posts its results here instead of touching
// shared state directly.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is posted to a stopped loop.
var ErrClosed = errors.New("dispatch loop closed")

// Loop runs posted closures one at a time, in posting order.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
}

// New constructs an empty loop. Run must be called to process work; tests may
// call RunPending instead.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post appends fn to the queue. It never blocks and is safe from any goroutine,
// including from inside a running closure.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits for it to finish. It must not be called from inside a
// loop closure.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted work until ctx is done. Pending work is drained
// before Run returns and later posts are rejected.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.mu.Unlock()
			l.RunPending()
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending runs queued closures on the calling goroutine until the queue is
// empty, including closures posted while draining. It returns how many ran.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return ran
		}
		fn := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		l.mu.Unlock()

		fn()
		ran++
	}
}
