// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	maxLogFileBytes  = 5 << 20
	maxRotatedFiles  = 5
	rotatedTimestamp = "20060102-150405"
)

// LevelTrace sits below slog.LevelDebug for wire-level diagnostics.
const LevelTrace = slog.LevelDebug - 4

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New builds a JSONL logger rooted at the resolved state path.
//
// Level resolution: LOG_LEVEL wins when set; otherwise APP_ENV picks the
// default (development=DEBUG, test=WARN, anything else INFO).
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	if err := rotateIfNeeded(path); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: ResolveLevel(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))})
	logger := slog.New(h)
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// ResolveLevel maps LOG_LEVEL/APP_ENV values onto a slog level.
func ResolveLevel(logLevel string, appEnv string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(logLevel)) {
	case "ERROR":
		return slog.LevelError
	case "WARN":
		return slog.LevelWarn
	case "INFO":
		return slog.LevelInfo
	case "DEBUG":
		return slog.LevelDebug
	case "TRACE":
		return LevelTrace
	}

	switch strings.ToLower(strings.TrimSpace(appEnv)) {
	case "development":
		return slog.LevelDebug
	case "test":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// rotateIfNeeded renames an oversized log and prunes old rotations.
func rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat log %q: %w", path, err)
	}
	if info.Size() < maxLogFileBytes {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format(rotatedTimestamp))
	if err := os.Rename(path, rotated); err != nil {
		return fmt.Errorf("rotate log %q: %w", path, err)
	}

	return pruneRotations(path)
}

// pruneRotations keeps at most maxRotatedFiles timestamped siblings.
func pruneRotations(path string) error {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return err
	}
	if len(matches) <= maxRotatedFiles {
		return nil
	}

	sort.Strings(matches)
	for _, stale := range matches[:len(matches)-maxRotatedFiles] {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("prune rotated log %q: %w", stale, err)
		}
	}
	return nil
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "juno", "logs", "juno.jsonl"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "juno", "logs", "juno.jsonl"), nil
}
