// Package selection reads the foreground application's highlighted text.
package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahorihuela/juno/internal/hypr"
)

// readBudget bounds one Read call across all strategies and retries.
const readBudget = 400 * time.Millisecond

// Selection is the captured foreground selection, possibly empty.
type Selection struct {
	Text    string
	AppName string
}

// Strategy is one way of extracting the foreground selection.
type Strategy interface {
	Name() string
	IsApplicable(appName string) bool
	GetSelection(ctx context.Context, appName string) (string, bool, error)
}

// Reader walks an ordered strategy list until one yields a selection.
type Reader struct {
	strategies   []Strategy
	logger       *slog.Logger
	activeWindow func(context.Context) (hypr.ActiveWindow, error)
}

// NewReader builds a reader over the given strategies, in priority order.
func NewReader(logger *slog.Logger, strategies ...Strategy) *Reader {
	return &Reader{
		strategies:   strategies,
		logger:       logger,
		activeWindow: hypr.QueryActiveWindow,
	}
}

// Read returns the current selection or an empty result.
//
// Strategy failures and a failed foreground-window query are logged and
// skipped; Read never returns an error.
func (r *Reader) Read(ctx context.Context) (Selection, error) {
	readCtx, cancel := context.WithTimeout(ctx, readBudget)
	defer cancel()

	appName := ""
	if window, err := r.activeWindow(readCtx); err == nil {
		appName = window.AppName()
	} else {
		r.log("active window query failed", err)
	}

	for _, strategy := range r.strategies {
		if !strategy.IsApplicable(appName) {
			continue
		}

		text, ok, err := strategy.GetSelection(readCtx, appName)
		if err != nil {
			r.log("selection strategy failed", err, "strategy", strategy.Name())
			continue
		}
		if !ok || text == "" {
			continue
		}
		return Selection{Text: text, AppName: appName}, nil
	}

	return Selection{AppName: appName}, nil
}

func (r *Reader) log(message string, err error, args ...any) {
	if r.logger == nil || err == nil {
		return
	}
	r.logger.Debug(message, append([]any{"error", err.Error()}, args...)...)
}
