package audio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls  atomic.Int32
	source string
	err    error
}

func (r *countingResolver) Source(context.Context) (string, error) {
	r.calls.Add(1)
	return r.source, r.err
}

func TestCacheSourceBeforeRefresh(t *testing.T) {
	resolver := &countingResolver{source: "mic"}
	cache := NewCache(resolver, time.Second, nil)

	_, err := cache.Source(context.Background())
	require.ErrorIs(t, err, errNotResolved)
	require.Zero(t, resolver.calls.Load())
}

func TestCacheServesLastRefresh(t *testing.T) {
	resolver := &countingResolver{source: "alsa_input.usb-mic"}
	cache := NewCache(resolver, time.Second, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	for i := 0; i < 3; i++ {
		source, err := cache.Source(context.Background())
		require.NoError(t, err)
		require.Equal(t, "alsa_input.usb-mic", source)
	}
	require.Equal(t, int32(1), resolver.calls.Load())
}

func TestCacheKeepsRefreshError(t *testing.T) {
	resolver := &countingResolver{err: errors.New("connect pulse server: refused")}
	cache := NewCache(resolver, time.Second, nil)
	require.Error(t, cache.Refresh(context.Background()))

	source, err := cache.Source(context.Background())
	require.Empty(t, source)
	require.ErrorContains(t, err, "refused")
}

func TestCacheRefreshIsBounded(t *testing.T) {
	resolver := Selector{
		Input: "default",
		list: func(ctx context.Context) ([]Device, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	cache := NewCache(resolver, 20*time.Millisecond, nil)

	err := cache.Refresh(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheRunRefreshesUntilCancelled(t *testing.T) {
	resolver := &countingResolver{source: "mic"}
	cache := NewCache(resolver, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Run(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return resolver.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	source, err := cache.Source(context.Background())
	require.NoError(t, err)
	require.Equal(t, "mic", source)
}
