package session

import (
	"context"
	"sync"
	"time"
)

const effectTimeout = 5 * time.Second

// effects runs indicator and clipboard work in order, off the control loop.
type effects struct {
	mu      sync.Mutex
	queue   []func(context.Context)
	running bool
	wg      sync.WaitGroup
}

// Go queues fn behind earlier effects.
func (e *effects) Go(fn func(context.Context)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue = append(e.queue, fn)
	if e.running {
		return
	}
	e.running = true
	e.wg.Add(1)
	go e.drain()
}

func (e *effects) drain() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
		fn(ctx)
		cancel()
	}
}

// Wait blocks until the queue is empty.
func (e *effects) Wait() {
	e.wg.Wait()
}
