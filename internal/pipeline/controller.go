package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahorihuela/juno/internal/aiproc"
	"github.com/ahorihuela/juno/internal/classifier"
	"github.com/ahorihuela/juno/internal/config"
	"github.com/ahorihuela/juno/internal/fsm"
	"github.com/ahorihuela/juno/internal/insert"
	"github.com/ahorihuela/juno/internal/notify"
	"github.com/ahorihuela/juno/internal/selection"
	"github.com/ahorihuela/juno/internal/transcribe"
)

type action int

const (
	actionStart action = iota + 1
	actionStop
	actionCancel
	actionPause
	actionResume
)

const (
	// minClipDuration is the floor below which transcription is skipped.
	minClipDuration = 1500 * time.Millisecond

	// feedbackTrailingDelay keeps the audio-feedback gate open after
	// insertion so a late error cue cannot overlap the paste.
	feedbackTrailingDelay = 2 * time.Second

	// longDictationTokenCount marks an utterance as dictation-shaped.
	longDictationTokenCount = 25

	// recentCommandWindow bounds the recent-AI-command classifier signal.
	recentCommandWindow = 5 * time.Minute
)

// Controller owns the single in-flight utterance and its state machine.
type Controller struct {
	cfg    config.Config
	logger *slog.Logger

	recorder    Recorder
	transcriber Transcriber
	processor   Processor
	selector    Selector
	inserter    Inserter
	notifier    notify.Notifier
	classify    Classify

	// OnResult receives each finished utterance summary.
	OnResult func(Result)

	mu          sync.RWMutex
	state       fsm.State
	utterCancel context.CancelFunc
	recentCmds  []time.Time
	feedbackOff *time.Timer
	lastResult  *Result

	actions chan action
}

// NewController wires the stage components into one pipeline.
func NewController(
	cfg config.Config,
	logger *slog.Logger,
	rec Recorder,
	transcriber Transcriber,
	processor Processor,
	selector Selector,
	inserter Inserter,
	notifier notify.Notifier,
) *Controller {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Controller{
		cfg:         cfg,
		logger:      logger,
		recorder:    rec,
		transcriber: transcriber,
		processor:   processor,
		selector:    selector,
		inserter:    inserter,
		notifier:    notifier,
		classify:    classifier.Classify,
		state:       fsm.StateIdle,
		actions:     make(chan action, 4),
	}
}

// State returns the current pipeline state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// Run consumes actions until context cancellation, executing one utterance
// at a time. All state transitions happen on this goroutine.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.abortActive()
			return
		case a := <-c.actions:
			if a != actionStart {
				continue
			}
			result := c.runUtterance(ctx)
			c.finish(result)
		}
	}
}

// RequestStart arms a new utterance when the pipeline is idle.
func (c *Controller) RequestStart() error {
	if state := c.State(); state != fsm.StateIdle {
		return fmt.Errorf("cannot start from state %s", state)
	}
	select {
	case c.actions <- actionStart:
		return nil
	default:
		return errors.New("start already requested")
	}
}

// RequestStop ends capture and lets the pipeline continue downstream.
func (c *Controller) RequestStop() error {
	state := c.State()
	if state != fsm.StateRecording && state != fsm.StatePaused {
		return fmt.Errorf("cannot stop from state %s", state)
	}
	select {
	case c.actions <- actionStop:
	default:
	}
	return nil
}

// RequestPause gates capture.
func (c *Controller) RequestPause() error {
	if state := c.State(); state != fsm.StateRecording {
		return fmt.Errorf("cannot pause from state %s", state)
	}
	select {
	case c.actions <- actionPause:
	default:
	}
	return nil
}

// RequestResume re-opens capture.
func (c *Controller) RequestResume() error {
	if state := c.State(); state != fsm.StatePaused {
		return fmt.Errorf("cannot resume from state %s", state)
	}
	select {
	case c.actions <- actionResume:
	default:
	}
	return nil
}

// RequestCancel aborts the utterance at whatever boundary it is crossing.
//
// While recording, the cancel is consumed by the action loop; once the
// pipeline is busy in a remote call, the in-flight work is aborted directly.
func (c *Controller) RequestCancel() error {
	switch c.State() {
	case fsm.StateRecording, fsm.StatePaused, fsm.StateArming:
		select {
		case c.actions <- actionCancel:
		default:
		}
		return nil
	case fsm.StateFinalizing, fsm.StateTranscribing, fsm.StateProcessing, fsm.StateInserting:
		c.abortActive()
		return nil
	default:
		return fmt.Errorf("cannot cancel from state %s", c.State())
	}
}

// abortActive cancels the utterance context and in-flight remote calls.
func (c *Controller) abortActive() {
	c.mu.Lock()
	cancel := c.utterCancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.transcriber.Cancel()
	c.processor.Cancel()
}

// runUtterance executes one full utterance lifecycle.
func (c *Controller) runUtterance(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	utterCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.utterCancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.utterCancel = nil
		c.mu.Unlock()
	}()

	if err := c.transition(fsm.EventStart); err != nil {
		return c.fail(result, err, "")
	}

	c.stopFeedbackTimer()
	c.recorder.SetFeedbackEnabled(c.cfg.AudioFeedback)

	if err := c.recorder.Start(utterCtx, c.cfg.DefaultMicrophone); err != nil {
		c.notifyError("Unable to start recording", err)
		return c.fail(result, err, "")
	}
	if err := c.transition(fsm.EventArmed); err != nil {
		_ = c.recorder.Cancel(context.WithoutCancel(ctx))
		return c.fail(result, err, "")
	}
	c.notifier.Notify(utterCtx, notify.Notification{Title: "Recording…", Kind: notify.KindInfo})

	// Capture phase: consume actions until stop or cancel.
	for {
		select {
		case <-ctx.Done():
			_ = c.recorder.Cancel(context.WithoutCancel(ctx))
			return c.cancelled(result)
		case a := <-c.actions:
			switch a {
			case actionPause:
				if err := c.transition(fsm.EventPause); err == nil {
					c.recorder.Pause()
				}
				continue
			case actionResume:
				if err := c.transition(fsm.EventResume); err == nil {
					c.recorder.Resume()
				}
				continue
			case actionCancel:
				_ = c.recorder.Cancel(context.WithoutCancel(ctx))
				return c.cancelled(result)
			case actionStop:
				if err := c.transition(fsm.EventStop); err != nil {
					return c.fail(result, err, "")
				}
			default:
				continue
			}
		}
		break
	}

	// Finalizing: freeze the clip and gate on duration + voice activity.
	clip, err := c.recorder.Stop(context.WithoutCancel(ctx))
	if err != nil {
		c.notifyError("Recording failed", err)
		return c.fail(result, err, "")
	}
	result.ClipDuration = clip.Duration()

	if clip.Duration() < minClipDuration {
		c.notifier.Notify(utterCtx, notify.Notification{Title: "Recording too short", Kind: notify.KindWarning})
		_ = c.transition(fsm.EventSkip)
		result.State = string(c.State())
		result.FinishedAt = time.Now()
		return result
	}
	if !clip.Stats.HasRealSpeech() {
		c.notifier.Notify(utterCtx, notify.Notification{Title: "No speech detected", Kind: notify.KindWarning})
		_ = c.transition(fsm.EventSkip)
		result.State = string(c.State())
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.transition(fsm.EventFinalized); err != nil {
		return c.fail(result, err, "")
	}

	// Transcription runs alongside the selection read and the status toast;
	// all three join before classification.
	var (
		transcription transcribe.Result
		sel           selection.Selection
	)
	group, groupCtx := errgroup.WithContext(utterCtx)
	group.Go(func() error {
		var terr error
		transcription, terr = c.transcriber.Transcribe(groupCtx, clip, transcribe.Options{
			UseCache:    c.cfg.CacheEnabled,
			Temperature: 0,
		})
		return terr
	})
	group.Go(func() error {
		sel, _ = c.selector.Read(groupCtx)
		return nil
	})
	group.Go(func() error {
		c.notifier.Notify(groupCtx, notify.Notification{Title: "Transcribing…", Kind: notify.KindInfo})
		return nil
	})
	if err := group.Wait(); err != nil {
		if errors.Is(err, transcribe.ErrCancelled) {
			return c.cancelled(result)
		}
		c.notifyError(transcribeErrorTitle(err), err)
		return c.fail(result, err, "")
	}

	result.Transcript = transcription.Text
	if strings.TrimSpace(transcription.Text) == "" {
		c.notifier.Notify(utterCtx, notify.Notification{Title: "No speech detected", Kind: notify.KindWarning})
		_ = c.transition(fsm.EventSkip)
		result.State = string(c.State())
		result.FinishedAt = time.Now()
		return result
	}

	// Classification decides the route; only a confident Command goes to AI.
	decision := c.classify(transcription.Text, classifier.Context{
		TriggerWord:        c.cfg.AITriggerWord,
		ActionVerbs:        c.cfg.ActionVerbs,
		VerbsEnabled:       c.cfg.ActionVerbsEnabled,
		HasHighlightedText: sel.Text != "",
		IsLongDictation:    len(strings.Fields(transcription.Text)) > longDictationTokenCount,
		RecentAICommands:   c.recentCommandCount(),
	})

	insertText := transcription.Text
	if decision.Decision == classifier.Command {
		if err := c.transition(fsm.EventCommand); err != nil {
			return c.fail(result, err, "")
		}
		result.WasCommand = true
		c.recordCommand()

		processed, perr := c.processor.Process(utterCtx, transcription.Text, sel.Text)
		switch {
		case perr == nil:
			insertText = processed
		case errors.Is(perr, aiproc.ErrCancelled):
			if utterCtx.Err() != nil {
				return c.cancelled(result)
			}
			// Superseded call: fall through with the plain transcription.
		case aiproc.KindOf(perr) == aiproc.KindTimeout:
			// Timeout falls back to plain dictation silently.
			c.logWarn("ai processing timed out; inserting plain transcription")
		default:
			c.notifyError(aiErrorTitle(perr), perr)
		}

		if err := c.transition(fsm.EventProcessed); err != nil {
			return c.fail(result, err, "")
		}
	} else {
		if err := c.transition(fsm.EventTranscribed); err != nil {
			return c.fail(result, err, "")
		}
	}

	if utterCtx.Err() != nil {
		return c.cancelled(result)
	}

	outcome := c.inserter.Insert(utterCtx, insert.Request{
		Text:             insertText,
		ReplaceSelection: result.WasCommand && sel.Text != "",
		AppName:          sel.AppName,
	})
	result.Inserted = insertText
	result.Deferred = outcome.Deferred

	if outcome.Deferred {
		// Deferred insertion is not an error; the engine already notified
		// and the error cue stays suppressed.
		c.recorder.SetFeedbackEnabled(false)
	} else {
		c.recorder.PlayCompleteCue()
	}

	if err := c.transition(fsm.EventInserted); err != nil {
		return c.fail(result, err, "")
	}

	result.State = string(c.State())
	result.FinishedAt = time.Now()
	return result
}

// finish resets terminal states back to idle and reports the result.
func (c *Controller) finish(result Result) {
	c.notifier.Dismiss(context.Background())
	c.scheduleFeedbackOff()

	if fsm.Terminal(c.State()) {
		_ = c.transition(fsm.EventReset)
	}

	c.mu.Lock()
	c.lastResult = &result
	c.mu.Unlock()

	c.logResult(result)
	if c.OnResult != nil {
		c.OnResult(result)
	}
}

// LastTranscript returns the text inserted by the most recent completed
// utterance; cancelled or failed utterances report nothing.
func (c *Controller) LastTranscript() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastResult == nil || c.lastResult.Cancelled || c.lastResult.Err != nil {
		return ""
	}
	return c.lastResult.Inserted
}

// cancelled finalizes a controller-initiated abort; no notification fires.
func (c *Controller) cancelled(result Result) Result {
	_ = c.transition(fsm.EventCancel)
	result.State = string(c.State())
	result.Cancelled = true
	result.FinishedAt = time.Now()
	return result
}

// fail transitions to Failed and records the error.
func (c *Controller) fail(result Result, err error, transcript string) Result {
	c.recorder.PlayErrorCue()
	_ = c.transition(fsm.EventFail)
	result.State = string(c.State())
	result.Err = err
	if transcript != "" {
		result.Transcript = transcript
	}
	result.FinishedAt = time.Now()
	return result
}

// scheduleFeedbackOff disables the audio-feedback gate after the trailing delay.
func (c *Controller) scheduleFeedbackOff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedbackOff != nil {
		c.feedbackOff.Stop()
	}
	c.feedbackOff = time.AfterFunc(feedbackTrailingDelay, func() {
		c.recorder.SetFeedbackEnabled(false)
	})
}

func (c *Controller) stopFeedbackTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedbackOff != nil {
		c.feedbackOff.Stop()
		c.feedbackOff = nil
	}
}

// recordCommand notes an AI command for the recency classifier signal.
func (c *Controller) recordCommand() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recentCmds = append(c.recentCmds, time.Now())
}

// recentCommandCount prunes and counts commands inside the window.
func (c *Controller) recentCommandCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-recentCommandWindow)
	kept := c.recentCmds[:0]
	for _, at := range c.recentCmds {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	c.recentCmds = kept
	return len(kept)
}

// transcribeErrorTitle maps provider error kinds to notification titles.
func transcribeErrorTitle(err error) string {
	switch transcribe.KindOf(err) {
	case transcribe.KindInvalidKey:
		return "Invalid API key"
	case transcribe.KindRateLimited:
		return "Rate limit exceeded"
	case transcribe.KindTimeout:
		return "Transcription timed out"
	default:
		return "Transcription failed"
	}
}

// aiErrorTitle maps AI provider error kinds to notification titles.
func aiErrorTitle(err error) string {
	switch aiproc.KindOf(err) {
	case aiproc.KindInvalidKey:
		return "Invalid API key"
	case aiproc.KindRateLimited:
		return "Rate limit exceeded"
	default:
		return "AI processing failed"
	}
}

func (c *Controller) notifyError(title string, err error) {
	c.notifier.Notify(context.Background(), notify.Notification{
		Title: title,
		Body:  err.Error(),
		Kind:  notify.KindError,
	})
}

func (c *Controller) logWarn(message string) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(message)
}

func (c *Controller) logResult(result Result) {
	if c.logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"cancelled", result.Cancelled,
		"deferred", result.Deferred,
		"was_command", result.WasCommand,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"clip_ms", result.ClipDuration.Milliseconds(),
		"transcript_length", len(result.Transcript),
	}
	if result.Err != nil {
		c.logger.Error("utterance failed", append(fields, "error", result.Err.Error())...)
		return
	}
	c.logger.Info("utterance complete", fields...)
}
