package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live daemon owns the socket.
var ErrAlreadyRunning = errors.New("shutter daemon already running")

// RuntimeSocketPath returns the daemon command socket path.
func RuntimeSocketPath() (string, error) {
	return runtimePath("shutter.sock")
}

// HealthSocketPath returns the daemon gRPC health socket path.
func HealthSocketPath() (string, error) {
	return runtimePath("shutter-health.sock")
}

func runtimePath(name string) (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, name), nil
}

// Acquire listens on path, rescuing a stale socket left by a dead daemon.
func Acquire(
	ctx context.Context,
	path string,
	checkTimeout time.Duration,
	retries int,
	rescue func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}

		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, checkErr := Reachable(ctx, path, checkTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if checkErr != nil {
			return nil, fmt.Errorf("check existing socket %s: %w", path, checkErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}

		if rescue != nil {
			_ = rescue(ctx)
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
