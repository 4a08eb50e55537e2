package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahorihuela/juno/internal/aiproc"
	"github.com/ahorihuela/juno/internal/clipboard"
	"github.com/ahorihuela/juno/internal/config"
	"github.com/ahorihuela/juno/internal/fsm"
	"github.com/ahorihuela/juno/internal/insert"
	"github.com/ahorihuela/juno/internal/ipc"
	"github.com/ahorihuela/juno/internal/notify"
	"github.com/ahorihuela/juno/internal/pipeline"
	"github.com/ahorihuela/juno/internal/recorder"
	"github.com/ahorihuela/juno/internal/registry"
	"github.com/ahorihuela/juno/internal/selection"
	"github.com/ahorihuela/juno/internal/transcribe"
)

// commandRun starts the daemon: acquires the owner socket, initializes all
// services through the registry, and serves IPC until shutdown.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	owner, err := ipc.Acquire(ctx, socketPath, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: juno daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = owner.Close() }()

	services, err := buildServices(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	reg := registry.New(logger)
	for _, entry := range services.order {
		if err := reg.Register(entry.name, entry.service); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}

	if err := reg.Initialize(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: startup failed: %v\n", err)
		logger.Error("startup failed", "error", err.Error())
		return 1
	}

	shutdownCtx, shutdownDone := context.WithCancel(context.Background())
	defer shutdownDone()
	defer reg.Shutdown(shutdownCtx)

	controller := services.controller
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, owner.Listener(), &daemonHandler{controller: controller})
	}()

	logger.Info("daemon ready", "socket", socketPath)
	controller.Run(ctx)

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logger.Info("daemon stopped")
	return 0
}

// serviceEntry pairs one registry name with its lifecycle hooks.
type serviceEntry struct {
	name    string
	service registry.Service
}

// wiredServices is everything commandRun needs after construction.
type wiredServices struct {
	order      []serviceEntry
	controller *pipeline.Controller
}

// buildServices constructs all components and their registry lifecycle, in
// the canonical order: config, logging, notifications, audio, recorder,
// transcription, ai, selection, insertion.
func buildServices(cfg config.Config, logger *slog.Logger) (*wiredServices, error) {
	notifier := notify.New(notify.Config{
		Backend:        cfg.NotifyBackend,
		DesktopAppName: cfg.NotifyDesktopName,
	}, logger)

	clip := clipboard.New(cfg.Clipboard.Argv, cfg.ClipboardPaste.Argv)

	rec := recorder.New(recorder.Config{
		PreferredDevice:      cfg.DefaultMicrophone,
		AudioFeedback:        cfg.AudioFeedback,
		PauseBackgroundAudio: cfg.PauseBackgroundAudio,
	}, logger, notifier)

	cacheDir, err := resolveCacheDir()
	if err != nil {
		return nil, err
	}
	orchestrator := transcribe.New(transcribe.Config{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.WhisperModel,
		Language:     cfg.Language,
		Timeout:      time.Duration(cfg.TranscriptionTimeoutMS) * time.Millisecond,
		CacheEnabled: cfg.CacheEnabled,
		CacheSize:    cfg.CacheSize,
		CacheTTL:     time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		CacheDir:     cacheDir,
	}, logger)

	processor := aiproc.New(aiproc.Config{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Rules:       cfg.AIRules,
		Timeout:     time.Duration(cfg.AITimeoutMS) * time.Millisecond,
	}, logger)

	reader := selection.NewReader(logger,
		selection.NewInProcess(),
		selection.NewClipboardRoundTrip(clip, "CTRL,C"),
	)

	engine := insert.New(insert.Config{
		PasteShortcut: cfg.PasteShortcut,
		TypeArgv:      cfg.TypeCmd.Argv,
	}, clip, notifier, logger)

	controller := pipeline.NewController(cfg, logger, rec, orchestrator,
		&processorAdapter{processor: processor}, reader, engine, notifier)

	// A retry wave surfaces a single informational toast.
	orchestrator.OnRetry = func(transcribe.ErrorKind) {
		notifier.Notify(context.Background(), notify.Notification{
			Title: "Transcription retrying…",
			Kind:  notify.KindInfo,
		})
	}
	rec.OnAutoStop = func() { _ = controller.RequestStop() }

	order := []serviceEntry{
		{"config", registry.Funcs{}},
		{"logging", registry.Funcs{}},
		{"notifications", registry.Funcs{}},
		{"audio", registry.Funcs{}},
		{"recorder", registry.Funcs{
			Stop: func(ctx context.Context) error { return rec.Cancel(ctx) },
		}},
		{"transcription", registry.Funcs{
			Stop: func(context.Context) error { return orchestrator.Shutdown() },
		}},
		{"ai", registry.Funcs{
			Stop: func(context.Context) error { processor.Cancel(); return nil },
		}},
		{"selection", registry.Funcs{}},
		{"insertion", registry.Funcs{}},
	}

	return &wiredServices{order: order, controller: controller}, nil
}

// processorAdapter binds configured options onto the pipeline seam.
type processorAdapter struct {
	processor *aiproc.Processor
}

func (a *processorAdapter) Process(ctx context.Context, command string, selectionText string) (string, error) {
	return a.processor.Process(ctx, command, selectionText, aiproc.Options{})
}

func (a *processorAdapter) Cancel() {
	a.processor.Cancel()
}

// resolveCacheDir resolves the orchestrator cache directory under the state dir.
func resolveCacheDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "juno", "audio-processing", "cache"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for cache: %w", err)
	}
	return filepath.Join(home, ".local", "state", "juno", "audio-processing", "cache"), nil
}

// daemonHandler serves IPC commands against the pipeline controller.
type daemonHandler struct {
	controller *pipeline.Controller
}

// Handle maps socket commands to controller requests.
func (h *daemonHandler) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := h.controller.State()

	switch req.Command {
	case ipc.CmdStatus:
		return ipc.Response{
			OK:         true,
			State:      string(state),
			Transcript: h.controller.LastTranscript(),
			Message:    "status",
		}
	case ipc.CmdToggle:
		if state == fsm.StateIdle {
			return h.respond("recording started", h.controller.RequestStart())
		}
		return h.respond("stop requested", h.controller.RequestStop())
	case ipc.CmdStop:
		return h.respond("stop requested", h.controller.RequestStop())
	case ipc.CmdCancel:
		return h.respond("cancel requested", h.controller.RequestCancel())
	case ipc.CmdPause:
		return h.respond("paused", h.controller.RequestPause())
	case ipc.CmdResume:
		return h.respond("resumed", h.controller.RequestResume())
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (h *daemonHandler) respond(message string, err error) ipc.Response {
	state := string(h.controller.State())
	if err != nil {
		return ipc.Response{OK: false, State: state, Error: err.Error()}
	}
	return ipc.Response{OK: true, State: state, Message: message}
}
