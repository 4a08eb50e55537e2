package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLevelFromLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"ERROR", slog.LevelError},
		{"warn", slog.LevelWarn},
		{"Info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"trace", LevelTrace},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ResolveLevel(tc.raw, ""), tc.raw)
	}
}

func TestResolveLevelFromAppEnv(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ResolveLevel("", "development"))
	require.Equal(t, slog.LevelWarn, ResolveLevel("", "test"))
	require.Equal(t, slog.LevelInfo, ResolveLevel("", "production"))
	require.Equal(t, slog.LevelInfo, ResolveLevel("", ""))
	require.Equal(t, slog.LevelInfo, ResolveLevel("bogus", "bogus"))
}

func TestLogLevelWinsOverAppEnv(t *testing.T) {
	require.Equal(t, slog.LevelError, ResolveLevel("ERROR", "development"))
}

func TestNewWritesUnderStateDir(t *testing.T) {
	stateDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateDir)

	runtime, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	require.Equal(t, filepath.Join(stateDir, "juno", "logs", "juno.jsonl"), runtime.Path)
	runtime.Logger.Error("boom", "reason", "test")
	require.NoError(t, runtime.Close())

	content, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.Contains(t, string(content), `"boom"`)
}

func TestRotateIfNeededRenamesOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "juno.jsonl")
	require.NoError(t, os.WriteFile(path, make([]byte, maxLogFileBytes), 0o600))

	require.NoError(t, rotateIfNeeded(path))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestPruneRotationsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "juno.jsonl")
	for i := 0; i < maxRotatedFiles+3; i++ {
		name := fmt.Sprintf("%s.2026010%d-000000", path, i)
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
	}

	require.NoError(t, pruneRotations(path))

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Len(t, matches, maxRotatedFiles)
}
