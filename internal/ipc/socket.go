package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/nolook/internal/logging"
)

// ErrAlreadyRunning means another nolook watch owns the control socket.
var ErrAlreadyRunning = errors.New("nolook watch already running")

// SocketName is the control socket file inside XDG_RUNTIME_DIR.
const SocketName = "nolook.sock"

// RuntimeSocketPath locates the control socket.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// Lock is an owned control socket.
type Lock struct {
	net.Listener
	path string
}

// Path is the socket file.
func (l *Lock) Path() string { return l.path }

// Release closes the listener and unlinks the socket file. Closing a listener
// Serve already closed is not an error.
func (l *Lock) Release() error {
	err := l.Listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return errors.Join(err, fmt.Errorf("remove socket %s: %w", l.path, rmErr))
	}
	return err
}

// Acquire listens on path, reclaiming a socket left behind by a dead owner.
// A responsive owner yields ErrAlreadyRunning; an owner that accepts but does
// not answer within probeTimeout is left alone.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int, logger *slog.Logger) (*Lock, error) {
	logger = logging.OrDiscard(logger)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Lock{Listener: listener, path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		logger.Warn("reclaiming stale control socket", "path", path, "attempt", attempt)
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
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
