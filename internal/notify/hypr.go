package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahorihuela/juno/internal/hypr"
)

// HyprSink routes notifications through hyprctl dispatch notify.
type HyprSink struct {
	logger *slog.Logger
}

// Notify dispatches one hyprctl notification with kind-specific icon/color.
func (s *HyprSink) Notify(ctx context.Context, n Notification) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	icon, color := hyprStyle(n.Kind)
	text := n.Title
	if n.Body != "" {
		if text != "" {
			text += ": "
		}
		text += n.Body
	}

	if err := hypr.Notify(runCtx, icon, int(defaultTimeout(n).Milliseconds()), color, text); err != nil {
		s.log("hypr notification failed", err)
	}
}

// Dismiss clears active hyprctl notifications.
func (s *HyprSink) Dismiss(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	if err := hypr.DismissNotify(runCtx); err != nil {
		s.log("hypr dismiss failed", err)
	}
}

func (s *HyprSink) log(message string, err error) {
	if s.logger == nil || err == nil {
		return
	}
	s.logger.Debug(message, "error", err.Error())
}

// hyprStyle maps a notification kind onto hyprctl icon and color values.
func hyprStyle(kind Kind) (int, string) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindSuccess:
		return 5, "rgb(a6e3a1)"
	case KindWarning:
		return 0, "rgb(f9e2af)"
	case KindError:
		return 3, "rgb(f38ba8)"
	default:
		return 1, "rgb(89b4fa)"
	}
}
