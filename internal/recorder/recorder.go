// Package recorder owns the capture device and produces finalized audio clips.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahorihuela/juno/internal/audio"
	"github.com/ahorihuela/juno/internal/notify"
)

// ErrPermissionDenied indicates the capture device cannot be opened at all.
var ErrPermissionDenied = errors.New("microphone access denied")

// ErrNotRecording is returned by stop/cancel outside an active recording.
var ErrNotRecording = errors.New("recorder is not recording")

// DefaultMaxDuration is the hard recording ceiling.
const DefaultMaxDuration = 10 * time.Minute

// Config parameterizes recorder behavior from the configuration store.
type Config struct {
	PreferredDevice      string
	AudioFeedback        bool
	PauseBackgroundAudio bool
	MaxDuration          time.Duration
}

// captureStream is the recorder-facing subset of audio.Capture, split out so
// tests can drive the analysis loop without a Pulse server.
type captureStream interface {
	Chunks() <-chan []byte
	Stop() error
	SetPaused(bool)
	BytesCaptured() int64
	DroppedChunks() int64
	Device() audio.Device
}

// startCaptureFunc opens a capture stream for a selected device.
type startCaptureFunc func(ctx context.Context, device audio.Device) (captureStream, error)

// Recorder acquires the capture device and yields one Clip per utterance.
type Recorder struct {
	cfg      Config
	logger   *slog.Logger
	notifier notify.Notifier

	// OnLevels receives the smoothed 10-bar vector for the overlay.
	OnLevels func([audio.LevelBars]float64)
	// OnAutoStop fires when the recording ceiling force-stops capture.
	OnAutoStop func()

	startCapture startCaptureFunc
	selectDevice func(ctx context.Context, preferred string) (audio.Selection, error)
	cues         *cuePlayer
	background   *backgroundAudio

	mu              sync.Mutex
	capture         captureStream
	recording       bool
	paused          bool
	startedAt       time.Time
	pauseBegan      time.Time
	pausedIntervals []audio.PausedInterval
	pcm             []byte
	stats           audio.ClipStats
	meter           audio.LevelMeter
	analysisDone    chan struct{}
	ceilingTimer    *time.Timer
	lagWarned       bool
}

// New constructs a recorder with production capture wiring.
func New(cfg Config, logger *slog.Logger, notifier notify.Notifier) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Recorder{
		cfg:      cfg,
		logger:   logger,
		notifier: notifier,
		startCapture: func(ctx context.Context, device audio.Device) (captureStream, error) {
			return audio.StartCapture(ctx, device)
		},
		selectDevice: audio.SelectDevice,
		cues:         newCuePlayer(cfg.AudioFeedback),
		background:   newBackgroundAudio(cfg.PauseBackgroundAudio, logger),
	}
}

// CheckPermission verifies the capture subsystem is reachable and a device
// can be resolved.
func (r *Recorder) CheckPermission(ctx context.Context, deviceID string) error {
	preferred := deviceID
	if preferred == "" {
		preferred = r.cfg.PreferredDevice
	}
	if _, err := r.selectDevice(ctx, preferred); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return nil
}

// SetDevice validates a device by opening it briefly; on failure the
// preference reverts to the system default and the user is notified.
func (r *Recorder) SetDevice(ctx context.Context, deviceID string) error {
	selection, err := r.selectDevice(ctx, deviceID)
	if err == nil && !selection.Fallback {
		capture, openErr := r.startCapture(ctx, selection.Device)
		if openErr == nil {
			_ = capture.Stop()
			r.mu.Lock()
			r.cfg.PreferredDevice = deviceID
			r.mu.Unlock()
			return nil
		}
		err = openErr
	}

	r.mu.Lock()
	r.cfg.PreferredDevice = ""
	r.mu.Unlock()

	r.notifier.Notify(ctx, notify.Notification{
		Title: "Microphone unavailable",
		Body:  fmt.Sprintf("Device %q could not be opened; using system default", deviceID),
		Kind:  notify.KindWarning,
	})
	if err != nil {
		return fmt.Errorf("validate device %q: %w", deviceID, err)
	}
	return nil
}

// Start transitions into recording. Idempotent while already recording.
func (r *Recorder) Start(ctx context.Context, deviceID string) error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return nil
	}
	preferred := deviceID
	if preferred == "" {
		preferred = r.cfg.PreferredDevice
	}
	r.mu.Unlock()

	selection, err := r.selectDevice(ctx, preferred)
	if err != nil {
		return fmt.Errorf("select capture device: %w", err)
	}
	if selection.Warning != "" {
		r.logWarn(selection.Warning)
		r.notifier.Notify(ctx, notify.Notification{
			Title: "Microphone fallback",
			Body:  selection.Warning,
			Kind:  notify.KindWarning,
		})
	}

	capture, err := r.startCapture(ctx, selection.Device)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	r.mu.Lock()
	r.capture = capture
	r.recording = true
	r.paused = false
	r.startedAt = time.Now()
	r.pausedIntervals = nil
	r.pcm = nil
	r.stats = audio.ClipStats{}
	r.meter.Reset()
	r.lagWarned = false
	r.analysisDone = make(chan struct{})
	r.ceilingTimer = time.AfterFunc(r.cfg.MaxDuration, r.onCeiling)
	done := r.analysisDone
	r.mu.Unlock()

	// Background-audio mute must never delay recording start.
	go r.background.Pause(context.WithoutCancel(ctx))
	r.cues.Play(cueStart)

	go r.analyze(capture, done)

	return nil
}

// Pause gates capture without releasing the device.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || r.paused {
		return
	}
	r.paused = true
	r.pauseBegan = time.Now()
	r.capture.SetPaused(true)
}

// Resume re-opens the capture gate and records the pause interval.
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording || !r.paused {
		return
	}
	r.paused = false
	r.capture.SetPaused(false)
	r.pausedIntervals = append(r.pausedIntervals, audio.PausedInterval{
		Start: r.pauseBegan.Sub(r.startedAt),
		End:   time.Since(r.startedAt),
	})
}

// Paused reports whether capture is currently gated.
func (r *Recorder) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// Recording reports whether a capture handle is live.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Stop flushes capture and returns the finalized clip.
func (r *Recorder) Stop(ctx context.Context) (*audio.Clip, error) {
	clip, err := r.finish(ctx, true)
	if err != nil {
		return nil, err
	}
	r.cues.Play(cueStop)
	return clip, nil
}

// Cancel releases capture and discards the audio.
func (r *Recorder) Cancel(ctx context.Context) error {
	_, err := r.finish(ctx, false)
	if err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	r.cues.Play(cueCancel)
	return nil
}

// finish tears down the active capture and optionally assembles the clip.
func (r *Recorder) finish(ctx context.Context, keep bool) (*audio.Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	capture := r.capture
	r.capture = nil
	done := r.analysisDone
	if r.ceilingTimer != nil {
		r.ceilingTimer.Stop()
		r.ceilingTimer = nil
	}
	if r.paused {
		r.paused = false
		r.pausedIntervals = append(r.pausedIntervals, audio.PausedInterval{
			Start: r.pauseBegan.Sub(r.startedAt),
			End:   time.Since(r.startedAt),
		})
	}
	r.mu.Unlock()

	stopErr := capture.Stop()
	<-done

	go r.background.Resume(context.WithoutCancel(ctx))

	r.mu.Lock()
	defer r.mu.Unlock()

	if stopErr != nil {
		return nil, fmt.Errorf("stop capture: %w", stopErr)
	}
	if !keep {
		r.pcm = nil
		return nil, nil
	}

	clip := &audio.Clip{
		PCM:             r.pcm,
		SampleRate:      audio.SampleRate,
		StartedAt:       r.startedAt,
		PausedIntervals: r.pausedIntervals,
		Stats:           r.stats,
	}
	r.pcm = nil
	return clip, nil
}

// analyze drains capture chunks, feeding VAD stats and overlay levels.
//
// Chunks arrive in strict temporal order; the loop exits when capture
// closes its channel on stop.
func (r *Recorder) analyze(capture captureStream, done chan struct{}) {
	defer close(done)

	for chunk := range capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		samples := audio.SamplesFromBytes(chunk)
		chunkStats := audio.AnalyzeChunk(samples)

		r.mu.Lock()
		r.pcm = append(r.pcm, chunk...)
		r.stats.Add(samples, chunkStats)
		levels := r.meter.Update(samples)
		onLevels := r.OnLevels
		warnLag := capture.DroppedChunks() > 0 && !r.lagWarned
		if warnLag {
			r.lagWarned = true
		}
		r.mu.Unlock()

		if onLevels != nil {
			onLevels(levels)
		}
		if warnLag {
			r.logWarn("capture lagging; oldest chunks dropped")
			r.notifier.Notify(context.Background(), notify.Notification{
				Title: "Capture lagging",
				Body:  "Audio chunks are being dropped; recording continues",
				Kind:  notify.KindWarning,
			})
		}
	}
}

// onCeiling force-stops a runaway recording.
func (r *Recorder) onCeiling() {
	r.mu.Lock()
	recording := r.recording
	onAutoStop := r.OnAutoStop
	r.mu.Unlock()
	if !recording {
		return
	}

	r.logWarn("recording ceiling reached; forcing stop")
	r.notifier.Notify(context.Background(), notify.Notification{
		Title: "Recording limit reached",
		Body:  "Recording stopped automatically",
		Kind:  notify.KindWarning,
	})

	if onAutoStop != nil {
		onAutoStop()
		return
	}
	_, _ = r.Stop(context.Background())
}

// SetFeedbackEnabled toggles audio cue playback; the pipeline uses this to
// suppress late error sounds after insertion completes.
func (r *Recorder) SetFeedbackEnabled(enabled bool) {
	r.cues.SetEnabled(enabled)
}

// PlayErrorCue emits the failure cue when feedback is enabled.
func (r *Recorder) PlayErrorCue() {
	r.cues.Play(cueError)
}

// PlayCompleteCue emits the success cue when feedback is enabled.
func (r *Recorder) PlayCompleteCue() {
	r.cues.Play(cueComplete)
}

func (r *Recorder) logWarn(message string) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(message)
}
