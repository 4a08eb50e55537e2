package insert

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ahorihuela/juno/internal/clipboard"
	"github.com/ahorihuela/juno/internal/hypr"
	"github.com/ahorihuela/juno/internal/notify"
)

// pasteAckTimeout bounds each key-synthesis dispatch.
const pasteAckTimeout = 300 * time.Millisecond

// Request is one insertion job.
type Request struct {
	Text string
	// ReplaceSelection marks the job as replacing a previously observed
	// selection rather than inserting at a bare cursor.
	ReplaceSelection bool
	AppName          string
}

// Config parameterizes the engine from the configuration store.
type Config struct {
	PasteShortcut string
	TypeArgv      []string
}

// Engine drives the ordered strategy chain for one insertion at a time.
type Engine struct {
	cfg      Config
	clip     *clipboard.Client
	notifier notify.Notifier
	logger   *slog.Logger

	sendShortcut func(ctx context.Context, shortcut string, windowAddress string) error
	activeWindow func(context.Context) (hypr.ActiveWindow, error)
	runArgv      func(ctx context.Context, argv []string, stdin string) error
}

// New constructs an engine over the shared clipboard client.
func New(cfg Config, clip *clipboard.Client, notifier notify.Notifier, logger *slog.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Engine{
		cfg:          cfg,
		clip:         clip,
		notifier:     notifier,
		logger:       logger,
		sendShortcut: hypr.SendShortcutToWindow,
		activeWindow: hypr.QueryActiveWindow,
		runArgv:      runCommand,
	}
}

// Insert places text at the cursor, walking strategies until one succeeds.
//
// Insert never fails upward: when every injection strategy is exhausted the
// text stays on the clipboard and the outcome reports Deferred.
func (e *Engine) Insert(ctx context.Context, req Request) Outcome {
	outcome := Outcome{}

	previous, err := e.clip.Get(ctx)
	if err != nil {
		e.logDebug("previous clipboard unreadable", err)
		previous = ""
	}
	outcome.PreviousClipboard = previous

	type strategy struct {
		kind       StrategyKind
		applicable bool
		run        func(context.Context, Request) error
	}

	strategies := []strategy{
		{PrimaryPaste, true, e.primaryPaste},
		{SecondaryPaste, true, e.secondaryPaste},
		{KeySimulation, keySimApplicable(req.Text), e.keySimulation},
	}

	for _, s := range strategies {
		if !s.applicable {
			continue
		}
		if e.tryStrategy(ctx, s.kind, s.run, req, &outcome) {
			outcome.Strategy = s.kind
			return outcome
		}
	}

	// Terminal fallback: leave the text on the clipboard.
	outcome.Strategy = ClipboardFallback
	outcome.Deferred = true
	outcome.Attempts = append(outcome.Attempts, Attempt{Strategy: ClipboardFallback, StartedAt: time.Now()})
	if err := e.clip.Set(context.WithoutCancel(ctx), req.Text); err != nil {
		e.logDebug("clipboard fallback set failed", err)
	}
	e.notifier.Notify(ctx, notify.Notification{
		Title: "Text copied — paste manually",
		Kind:  notify.KindWarning,
	})
	return outcome
}

// tryStrategy runs one strategy with per-strategy retries and backoff.
func (e *Engine) tryStrategy(
	ctx context.Context,
	kind StrategyKind,
	run func(context.Context, Request) error,
	req Request,
	outcome *Outcome,
) bool {
	for attempt := 0; attempt < attemptsPerStrategy; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(attemptBackoff):
			}
		}

		record := Attempt{Strategy: kind, StartedAt: time.Now()}
		err := run(ctx, req)
		record.Err = err
		outcome.Attempts = append(outcome.Attempts, record)

		if err == nil {
			return true
		}
		e.logDebug(fmt.Sprintf("insertion strategy %s failed", kind), err)
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// primaryPaste sets the clipboard and synthesizes the paste shortcut in the
// foreground window. Paste semantics require the clipboard to keep the text.
func (e *Engine) primaryPaste(ctx context.Context, req Request) error {
	if err := e.clip.Set(ctx, req.Text); err != nil {
		return err
	}

	window, err := e.activeWindow(ctx)
	if err != nil {
		return fmt.Errorf("resolve active window: %w", err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, pasteAckTimeout)
	defer cancel()
	return e.sendShortcut(ackCtx, e.cfg.PasteShortcut, window.Address)
}

// secondaryPaste sets the clipboard and replays the paste chord through the
// key-synthesis tool instead of the compositor dispatcher.
func (e *Engine) secondaryPaste(ctx context.Context, req Request) error {
	if err := e.clip.Set(ctx, req.Text); err != nil {
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, pasteAckTimeout)
	defer cancel()
	return e.runArgv(ackCtx, []string{"wtype", "-M", "ctrl", "-k", "v", "-m", "ctrl"}, "")
}

// keySimulation types the text directly, issuing a leading delete when
// replacing a selection in apps that keep it active under synthetic keys.
func (e *Engine) keySimulation(ctx context.Context, req Request) error {
	if req.ReplaceSelection && appPreservesSelection(req.AppName) {
		delCtx, cancel := context.WithTimeout(ctx, pasteAckTimeout)
		err := e.runArgv(delCtx, []string{"wtype", "-k", "Delete"}, "")
		cancel()
		if err != nil {
			return fmt.Errorf("leading delete: %w", err)
		}
	}

	typeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return e.runArgv(typeCtx, e.cfg.TypeArgv, req.Text)
}

// runCommand executes argv, optionally feeding stdin.
func runCommand(ctx context.Context, argv []string, stdin string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}

func (e *Engine) logDebug(message string, err error) {
	if e.logger == nil || err == nil {
		return
	}
	e.logger.Debug(message, "error", err.Error())
}
