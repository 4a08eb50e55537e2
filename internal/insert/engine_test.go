package insert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahorihuela/juno/internal/clipboard"
	"github.com/ahorihuela/juno/internal/hypr"
	"github.com/ahorihuela/juno/internal/notify"
)

type engineHarness struct {
	engine    *Engine
	clipStore string
	notes     *recordingNotifier

	mu            sync.Mutex
	shortcutErrs  []error
	shortcutCalls int
	argvCalls     [][]string
	argvStdin     []string
	argvErrs      map[string]error
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) Dismiss(context.Context) {}

func newHarness(t *testing.T) *engineHarness {
	t.Helper()
	store := filepath.Join(t.TempDir(), "clip")
	require.NoError(t, os.WriteFile(store, []byte("old clipboard"), 0o600))

	clip := clipboard.New(
		[]string{"sh", "-c", "cat > " + store},
		[]string{"sh", "-c", "cat " + store},
	)

	h := &engineHarness{clipStore: store, notes: &recordingNotifier{}, argvErrs: map[string]error{}}
	h.engine = New(Config{PasteShortcut: "CTRL,V", TypeArgv: []string{"type-tool"}}, clip, h.notes, nil)
	h.engine.activeWindow = func(context.Context) (hypr.ActiveWindow, error) {
		return hypr.ActiveWindow{Address: "0x3", Class: "firefox"}, nil
	}
	h.engine.sendShortcut = func(context.Context, string, string) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		idx := h.shortcutCalls
		h.shortcutCalls++
		if idx < len(h.shortcutErrs) {
			return h.shortcutErrs[idx]
		}
		return nil
	}
	h.engine.runArgv = func(_ context.Context, argv []string, stdin string) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.argvCalls = append(h.argvCalls, argv)
		h.argvStdin = append(h.argvStdin, stdin)
		if err, ok := h.argvErrs[argv[0]]; ok {
			return err
		}
		return nil
	}
	return h
}

func (h *engineHarness) clipboardNow(t *testing.T) string {
	t.Helper()
	content, err := os.ReadFile(h.clipStore)
	require.NoError(t, err)
	return string(content)
}

func TestPrimaryPasteSucceeds(t *testing.T) {
	h := newHarness(t)

	outcome := h.engine.Insert(context.Background(), Request{Text: "hello world"})
	require.Equal(t, PrimaryPaste, outcome.Strategy)
	require.False(t, outcome.Deferred)
	require.Len(t, outcome.Attempts, 1)
	require.NoError(t, outcome.Attempts[0].Err)
	require.Equal(t, "old clipboard", outcome.PreviousClipboard)

	// Paste semantics keep the new value on the clipboard.
	require.Equal(t, "hello world", h.clipboardNow(t))
	require.Equal(t, 1, h.shortcutCalls)
}

func TestPrimaryRetriesThenSecondary(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("rejected"), errors.New("rejected")}

	start := time.Now()
	outcome := h.engine.Insert(context.Background(), Request{Text: "hello"})
	elapsed := time.Since(start)

	require.Equal(t, SecondaryPaste, outcome.Strategy)
	require.False(t, outcome.Deferred)
	require.Equal(t, 2, h.shortcutCalls)
	require.GreaterOrEqual(t, elapsed, attemptBackoff)

	kinds := []StrategyKind{}
	for _, a := range outcome.Attempts {
		kinds = append(kinds, a.Strategy)
	}
	require.Equal(t, []StrategyKind{PrimaryPaste, PrimaryPaste, SecondaryPaste}, kinds)

	h.mu.Lock()
	require.Equal(t, []string{"wtype", "-M", "ctrl", "-k", "v", "-m", "ctrl"}, h.argvCalls[0])
	h.mu.Unlock()
}

func TestFullChainFallsBackToClipboard(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("no"), errors.New("no")}
	h.argvErrs["wtype"] = errors.New("no")
	h.argvErrs["type-tool"] = errors.New("no")

	outcome := h.engine.Insert(context.Background(), Request{Text: "rescued text"})
	require.Equal(t, ClipboardFallback, outcome.Strategy)
	require.True(t, outcome.Deferred)

	// Final clipboard state holds the text.
	require.Equal(t, "rescued text", h.clipboardNow(t))
	require.Equal(t, "old clipboard", outcome.PreviousClipboard)

	h.notes.mu.Lock()
	require.Len(t, h.notes.notes, 1)
	require.Equal(t, "Text copied — paste manually", h.notes.notes[0].Title)
	require.Equal(t, notify.KindWarning, h.notes.notes[0].Kind)
	h.notes.mu.Unlock()

	// 2 primary + 2 secondary + 2 keysim + 1 fallback.
	require.Len(t, outcome.Attempts, 7)
}

func TestKeySimulationSkippedForLongText(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("no"), errors.New("no")}
	h.argvErrs["wtype"] = errors.New("no")
	h.argvErrs["type-tool"] = errors.New("should never be called")

	long := strings.Repeat("w", 501)
	outcome := h.engine.Insert(context.Background(), Request{Text: long})
	require.Equal(t, ClipboardFallback, outcome.Strategy)

	for _, a := range outcome.Attempts {
		require.NotEqual(t, KeySimulation, a.Strategy)
	}
}

func TestKeySimulationTypesText(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("no"), errors.New("no")}
	h.argvErrs["wtype"] = errors.New("no")

	outcome := h.engine.Insert(context.Background(), Request{Text: "short text"})
	require.Equal(t, KeySimulation, outcome.Strategy)

	h.mu.Lock()
	last := h.argvCalls[len(h.argvCalls)-1]
	stdin := h.argvStdin[len(h.argvStdin)-1]
	h.mu.Unlock()
	require.Equal(t, []string{"type-tool"}, last)
	require.Equal(t, "short text", stdin)
}

func TestKeySimulationLeadingDeleteForSelectionPreservingApp(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("no"), errors.New("no")}
	// wtype fails only for the paste chord, not the delete key.
	pasteChordErr := errors.New("no")
	h.engine.runArgv = func(_ context.Context, argv []string, stdin string) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.argvCalls = append(h.argvCalls, argv)
		h.argvStdin = append(h.argvStdin, stdin)
		if len(argv) > 2 && argv[1] == "-M" {
			return pasteChordErr
		}
		return nil
	}

	outcome := h.engine.Insert(context.Background(), Request{
		Text:             "replacement",
		ReplaceSelection: true,
		AppName:          "kitty",
	})
	require.Equal(t, KeySimulation, outcome.Strategy)

	h.mu.Lock()
	defer h.mu.Unlock()
	var sawDelete bool
	for _, argv := range h.argvCalls {
		if len(argv) == 3 && argv[1] == "-k" && argv[2] == "Delete" {
			sawDelete = true
		}
	}
	require.True(t, sawDelete)
}

func TestNoLeadingDeleteForNormalApps(t *testing.T) {
	h := newHarness(t)
	h.shortcutErrs = []error{errors.New("no"), errors.New("no")}
	h.argvErrs["wtype"] = errors.New("no")

	_ = h.engine.Insert(context.Background(), Request{
		Text:             "replacement",
		ReplaceSelection: true,
		AppName:          "firefox",
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, argv := range h.argvCalls {
		require.False(t, len(argv) == 3 && argv[2] == "Delete")
	}
}

func TestKeySimApplicability(t *testing.T) {
	require.True(t, keySimApplicable("hello world"))
	require.True(t, keySimApplicable("multi\nline\ttext"))
	require.False(t, keySimApplicable(""))
	require.False(t, keySimApplicable(strings.Repeat("x", 501)))
	require.False(t, keySimApplicable("emoji \U0001F600"))
	require.False(t, keySimApplicable("combining e\u0301"))
}
