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

var ErrAlreadyRunning = errors.New("juno daemon already running")

// acquireProbeTimeout bounds the liveness probe against a contested socket.
const acquireProbeTimeout = 180 * time.Millisecond

// OwnerSocket is the claimed daemon socket; closing it releases the
// listener and unlinks the socket file.
type OwnerSocket struct {
	listener net.Listener
	path     string
}

// Listener exposes the accept side for Serve.
func (s *OwnerSocket) Listener() net.Listener {
	return s.listener
}

// Path returns the socket file location.
func (s *OwnerSocket) Path() string {
	return s.path
}

// Close releases the listener and removes the socket file.
func (s *OwnerSocket) Close() error {
	err := s.listener.Close()
	if removeErr := os.Remove(s.path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) && err == nil {
		err = removeErr
	}
	return err
}

// RuntimeSocketPath resolves the per-user daemon socket location.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "juno.sock"), nil
}

// Acquire claims single ownership of the daemon socket.
//
// A contested socket is probed: a responsive daemon yields
// ErrAlreadyRunning, while a stale file left by a crashed owner is
// removed and the claim retried with a short backoff.
func Acquire(ctx context.Context, path string, retries int) (*OwnerSocket, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &OwnerSocket{listener: listener, path: path}, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		probe := NewClient(path)
		probe.Timeout = acquireProbeTimeout
		alive, probeErr := probe.Probe(ctx)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}

		if attempt >= retries {
			return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
