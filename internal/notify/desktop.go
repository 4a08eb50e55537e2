package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// DesktopSink sends freedesktop notifications over DBus via busctl.
type DesktopSink struct {
	appName string
	logger  *slog.Logger

	mu        sync.Mutex
	replaceID uint32
}

// Notify sends a replaceable desktop notification.
func (s *DesktopSink) Notify(ctx context.Context, n Notification) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	s.mu.Lock()
	replaceID := s.replaceID
	s.mu.Unlock()

	id, err := busctlNotify(runCtx, s.appName, replaceID, n.Title, n.Body, int(defaultTimeout(n).Milliseconds()))
	if err != nil {
		s.log("desktop notification failed", err)
		return
	}

	s.mu.Lock()
	s.replaceID = id
	s.mu.Unlock()
}

// Dismiss closes the current desktop notification when one is visible.
func (s *DesktopSink) Dismiss(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	s.mu.Lock()
	id := s.replaceID
	s.replaceID = 0
	s.mu.Unlock()

	if id == 0 {
		return
	}
	if err := busctlDismiss(runCtx, id); err != nil {
		s.log("desktop dismiss failed", err)
	}
}

func (s *DesktopSink) log(message string, err error) {
	if s.logger == nil || err == nil {
		return
	}
	s.logger.Debug(message, "error", err.Error())
}

// busctlNotify sends a freedesktop notification over DBus and returns its server ID.
func busctlNotify(ctx context.Context, appName string, replaceID uint32, summary string, body string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		fmt.Sprintf("%d", replaceID),
		"",
		summary,
		body,
		"0", // actions array length
		"0", // hints map length
		fmt.Sprintf("%d", timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}

// busctlDismiss requests explicit close by notification ID.
func busctlDismiss(ctx context.Context, id uint32) error {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"CloseNotification",
		"u",
		fmt.Sprintf("%d", id),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("desktop dismiss failed: %w", err)
		}
		return fmt.Errorf("desktop dismiss failed: %w (%s)", err, trimmed)
	}

	return nil
}
