package aiproc

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Options tune one processing request; zero values defer to configuration.
type Options struct {
	Model       string
	Temperature float64
	Rules       []string
}

// Config parameterizes the processor from the configuration store.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	Rules       []string
	BaseURL     string
	Timeout     time.Duration
}

// completer is the wire-call seam; production wiring uses llmClient.
type completer interface {
	Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error)
}

// Processor sends command utterances to the LLM and sanitizes responses.
type Processor struct {
	cfg    Config
	logger *slog.Logger
	client completer

	mu       sync.Mutex
	inflight *inflightHandle
}

type inflightHandle struct {
	cancel context.CancelFunc
}

// New constructs a processor with the production chat client.
func New(cfg Config, logger *slog.Logger) *Processor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Processor{
		cfg:    cfg,
		logger: logger,
		client: newLLMClient(cfg.APIKey, cfg.BaseURL),
	}
}

// Process rewrites one command utterance against the current selection.
//
// The verbatim utterance (trigger prefix included) goes to the model; the
// echo guard retries once when the response repeats the highlighted text,
// and the second response is used unconditionally. A newer Process call
// cancels the one in flight, which returns ErrCancelled.
func (p *Processor) Process(ctx context.Context, command string, selection string, opts Options) (string, error) {
	model := opts.Model
	if model == "" {
		model = p.cfg.Model
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = p.cfg.Temperature
	}
	rules := opts.Rules
	if rules == nil {
		rules = p.cfg.Rules
	}

	callCtx, cancel := context.WithCancel(ctx)
	handle := &inflightHandle{cancel: cancel}
	p.swapInflight(handle)
	defer p.clearInflight(handle)

	system := buildSystemPrompt(rules)
	user := buildUserPrompt(command, selection)

	response, err := p.complete(callCtx, model, system, user, temperature)
	if err != nil {
		return "", err
	}

	if echoesSelection(response, selection) {
		p.logDebug("response echoed selection; retrying once")
		retryUser := user + "\n\n" + noRepeatRetrySuffix
		response, err = p.complete(callCtx, model, system, retryUser, temperature)
		if err != nil {
			return "", err
		}
	}

	return sanitizeResponse(response), nil
}

// Cancel aborts any in-flight request.
func (p *Processor) Cancel() {
	p.mu.Lock()
	handle := p.inflight
	p.inflight = nil
	p.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

// complete runs one bounded provider call.
func (p *Processor) complete(ctx context.Context, model string, system string, user string, temperature float64) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	response, err := p.client.Complete(callCtx, model, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, temperature)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return "", ErrCancelled
		}
		return "", err
	}
	return response, nil
}

func (p *Processor) swapInflight(handle *inflightHandle) {
	p.mu.Lock()
	prev := p.inflight
	p.inflight = handle
	p.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

func (p *Processor) clearInflight(handle *inflightHandle) {
	p.mu.Lock()
	if p.inflight == handle {
		p.inflight = nil
	}
	p.mu.Unlock()
}

func (p *Processor) logDebug(message string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(message, args...)
}
