package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/ahorihuela/juno/internal/clipboard"
	"github.com/ahorihuela/juno/internal/hypr"
)

const (
	copySettleDelay = 60 * time.Millisecond
	retryGap        = 300 * time.Millisecond
)

// ClipboardRoundTrip extracts the selection by synthesizing a copy in the
// foreground window, reading the clipboard, and restoring its prior value.
//
// The whole operation runs inside the clipboard client's internal guard so
// watchers never mistake it for a user copy. Observable clipboard state
// outside the guarded window matches the state before the call.
type ClipboardRoundTrip struct {
	clip         *clipboard.Client
	copyShortcut string

	sendCopy     func(ctx context.Context, windowAddress string) error
	activeWindow func(context.Context) (hypr.ActiveWindow, error)
}

// NewClipboardRoundTrip builds the roundtrip strategy over a shared client.
func NewClipboardRoundTrip(clip *clipboard.Client, copyShortcut string) *ClipboardRoundTrip {
	s := &ClipboardRoundTrip{
		clip:         clip,
		copyShortcut: copyShortcut,
		activeWindow: hypr.QueryActiveWindow,
	}
	s.sendCopy = func(ctx context.Context, windowAddress string) error {
		return hypr.SendShortcutToWindow(ctx, s.copyShortcut, windowAddress)
	}
	return s
}

func (s *ClipboardRoundTrip) Name() string { return "clipboard-roundtrip" }

// IsApplicable accepts any identified foreground application.
func (s *ClipboardRoundTrip) IsApplicable(appName string) bool {
	return appName != ""
}

// GetSelection performs the copy/read/restore dance with a single retry.
func (s *ClipboardRoundTrip) GetSelection(ctx context.Context, _ string) (string, bool, error) {
	endInternal := s.clip.BeginInternal()
	defer endInternal()

	window, err := s.activeWindow(ctx)
	if err != nil {
		return "", false, fmt.Errorf("resolve active window: %w", err)
	}

	previous, err := s.clip.Get(ctx)
	if err != nil {
		// Treat an unreadable clipboard as empty; restore still runs.
		previous = ""
	}

	text, ok, err := s.attempt(ctx, window.Address, previous)
	if err == nil && ok {
		s.restore(ctx, previous)
		return text, true, nil
	}

	select {
	case <-ctx.Done():
		s.restore(ctx, previous)
		return "", false, ctx.Err()
	case <-time.After(retryGap):
	}

	text, ok, err = s.attempt(ctx, window.Address, previous)
	s.restore(ctx, previous)
	if err != nil {
		return "", false, err
	}
	return text, ok, nil
}

// attempt synthesizes one copy and reads back the clipboard.
func (s *ClipboardRoundTrip) attempt(ctx context.Context, windowAddress string, previous string) (string, bool, error) {
	if err := s.sendCopy(ctx, windowAddress); err != nil {
		return "", false, fmt.Errorf("synthesize copy: %w", err)
	}

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-time.After(copySettleDelay):
	}

	current, err := s.clip.Get(ctx)
	if err != nil {
		return "", false, err
	}
	if current == "" || current == previous {
		return "", false, nil
	}
	return current, true, nil
}

// restore puts the pre-call clipboard contents back, best effort.
func (s *ClipboardRoundTrip) restore(ctx context.Context, previous string) {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = s.clip.Set(restoreCtx, previous)
}
