package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var errNotResolved = errors.New("audio source not resolved yet")

// Resolver looks up the source to record. Selector is the Pulse resolver.
type Resolver interface {
	Source(ctx context.Context) (string, error)
}

// Cache holds the last source a Resolver produced. Source never talks to
// Pulse; Refresh and Run do, and belong off the control loop.
type Cache struct {
	resolver Resolver
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	source   string
	err      error
	resolved bool
}

// NewCache wraps resolver. Each refresh is bounded by timeout.
func NewCache(resolver Resolver, timeout time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = Selector{}.logger()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Cache{resolver: resolver, timeout: timeout, logger: logger}
}

// Refresh resolves the source now and stores the outcome.
func (c *Cache) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	source, err := c.resolver.Source(ctx)

	c.mu.Lock()
	changed := !c.resolved || source != c.source
	c.source, c.err, c.resolved = source, err, true
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("audio source refresh failed", "error", err.Error())
	} else if changed {
		c.logger.Debug("audio source resolved", "source", source)
	}
	return err
}

// Run refreshes every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Source returns the cached outcome of the last refresh.
func (c *Cache) Source(context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.resolved {
		return "", errNotResolved
	}
	return c.source, c.err
}
