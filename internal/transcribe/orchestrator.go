package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/ahorihuela/juno/internal/audio"
)

const (
	// smallClipThreshold selects buffered vs streaming WAV materialization.
	smallClipThreshold = 1 << 20

	// maxServerRetries bounds additional attempts after a 5xx.
	maxServerRetries = 2

	backoffBase = 500 * time.Millisecond
)

// Options tune one transcription request. The zero value defers to the
// orchestrator's configured defaults.
type Options struct {
	Language    string
	Model       string
	Temperature float64
	Prompt      string
	UseCache    bool
}

// Result is one finished transcription.
type Result struct {
	ID       string
	Text     string
	Raw      []byte
	IssuedAt time.Time
}

// Config parameterizes the orchestrator from the configuration store.
type Config struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string
	Timeout  time.Duration

	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
	CacheDir     string
}

// provider is the wire-call seam; production wiring uses whisperClient.
type provider interface {
	Transcribe(ctx context.Context, wavPath string, opts Options) (string, []byte, error)
}

// OnRetry is invoked once per retry wave so the pipeline can surface a
// single informational notification.
type OnRetry func(kind ErrorKind)

// Orchestrator converts clips to text with caching, retries, and
// single-flight cancellation.
type Orchestrator struct {
	cfg      Config
	logger   *slog.Logger
	provider provider
	cache    *resultCache

	// OnRetry fires before a retryable attempt is retried.
	OnRetry OnRetry

	mu       sync.Mutex
	inflight *inflightHandle
}

// inflightHandle identifies one outstanding provider call.
type inflightHandle struct {
	cancel context.CancelFunc
}

// New constructs an orchestrator with the production Whisper client.
func New(cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		provider: newWhisperClient(cfg.APIKey, cfg.BaseURL),
		cache:    newResultCache(cfg.CacheSize, cfg.CacheTTL),
	}
}

// Transcribe converts one clip to text.
//
// A new call cancels any transcription still in flight; the superseded call
// returns ErrCancelled.
func (o *Orchestrator) Transcribe(ctx context.Context, clip *audio.Clip, opts Options) (Result, error) {
	opts = o.withDefaults(opts)

	key := cacheKey(clip.PCM, opts)
	if opts.UseCache && o.cfg.CacheEnabled {
		if cached, ok := o.cache.Get(key); ok {
			o.logDebug("transcription cache hit", "key", key[:16])
			return cached, nil
		}
	}

	callCtx, cancel := context.WithCancel(ctx)
	handle := &inflightHandle{cancel: cancel}
	o.swapInflight(handle)
	defer o.clearInflight(handle)

	wavPath, err := materializeWAV(clip)
	if err != nil {
		cancel()
		return Result{}, err
	}
	defer func() {
		_ = os.Remove(wavPath)
	}()

	text, raw, err := o.callWithRetries(callCtx, wavPath, opts)
	if err != nil {
		return Result{}, err
	}

	id, err := gonanoid.New()
	if err != nil {
		return Result{}, fmt.Errorf("generate result id: %w", err)
	}

	result := Result{ID: id, Text: text, Raw: raw, IssuedAt: time.Now()}
	if opts.UseCache && o.cfg.CacheEnabled {
		o.cache.Put(key, result)
	}
	return result, nil
}

// Cancel aborts any in-flight transcription.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	handle := o.inflight
	o.inflight = nil
	o.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

// Shutdown aborts in-flight work and persists cache metadata.
func (o *Orchestrator) Shutdown() error {
	o.Cancel()
	if o.cfg.CacheDir == "" {
		return nil
	}
	return o.cache.SaveStats(o.cfg.CacheDir)
}

// CacheStats exposes counters for diagnostics.
func (o *Orchestrator) CacheStats() CacheStats {
	return o.cache.Stats()
}

// callWithRetries applies the provider retry policy: 401 is fatal, 429
// retries once with jitter, 5xx retries up to two more times with
// exponential backoff.
func (o *Orchestrator) callWithRetries(ctx context.Context, wavPath string, opts Options) (string, []byte, error) {
	var rateLimitRetried bool
	serverRetries := 0

	for {
		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		text, raw, err := o.provider.Transcribe(attemptCtx, wavPath, opts)
		cancel()

		if err == nil {
			return text, raw, nil
		}
		if ctx.Err() != nil {
			return "", nil, ErrCancelled
		}

		var provErr *ProviderError
		if !errors.As(err, &provErr) || !provErr.Retryable() {
			return "", nil, err
		}

		var delay time.Duration
		switch provErr.Kind {
		case KindRateLimited:
			if rateLimitRetried {
				return "", nil, err
			}
			rateLimitRetried = true
			delay = backoffBase + time.Duration(rand.Int63n(int64(backoffBase)))
		default:
			if serverRetries >= maxServerRetries {
				return "", nil, err
			}
			delay = backoffBase << serverRetries
			serverRetries++
		}

		if o.OnRetry != nil {
			o.OnRetry(provErr.Kind)
		}
		o.logDebug("retrying transcription", "kind", string(provErr.Kind), "delay_ms", delay.Milliseconds())

		select {
		case <-ctx.Done():
			return "", nil, ErrCancelled
		case <-time.After(delay):
		}
	}
}

// materializeWAV writes the clip into a temporary whisper-*.wav file.
//
// Small clips go through one contiguous buffer; larger clips stream the
// payload to avoid the double allocation.
func materializeWAV(clip *audio.Clip) (string, error) {
	file, err := os.CreateTemp("", "whisper-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}

	if len(clip.PCM) <= smallClipThreshold {
		_, err = file.Write(audio.WAVFromPCM(clip.PCM, clip.SampleRate, audio.Channels))
	} else {
		err = audio.WriteWAV(file, clip.PCM, clip.SampleRate, audio.Channels)
	}
	closeErr := file.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write temp wav: %w", err)
	}
	return file.Name(), nil
}

// withDefaults fills zero options from configuration.
func (o *Orchestrator) withDefaults(opts Options) Options {
	if opts.Language == "" {
		opts.Language = o.cfg.Language
	}
	if opts.Model == "" {
		opts.Model = o.cfg.Model
	}
	return opts
}

// swapInflight cancels any previous request and records the new one.
func (o *Orchestrator) swapInflight(handle *inflightHandle) {
	o.mu.Lock()
	prev := o.inflight
	o.inflight = handle
	o.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

// clearInflight removes the cancel handle if it is still ours.
func (o *Orchestrator) clearInflight(handle *inflightHandle) {
	o.mu.Lock()
	if o.inflight == handle {
		o.inflight = nil
	}
	o.mu.Unlock()
}

func (o *Orchestrator) logDebug(message string, args ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Debug(message, args...)
}
