package aiproc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCompleter scripts responses and records prompts.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []callRecord
	block     chan struct{}
}

type callRecord struct {
	model       string
	system      string
	user        string
	temperature float64
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	f.mu.Lock()
	idx := len(f.calls)
	record := callRecord{model: model, temperature: temperature}
	for _, m := range messages {
		switch m.Role {
		case "system":
			record.system = m.Content
		case "user":
			record.user = m.Content
		}
	}
	f.calls = append(f.calls, record)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", &ProviderError{Kind: KindTimeout}
			}
			return "", ErrCancelled
		case <-block:
		}
	}

	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", &ProviderError{Kind: KindOther, Body: "unscripted call"}
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestProcessor(client completer) *Processor {
	p := New(Config{
		APIKey:      "sk-test",
		Model:       "gpt-4",
		Temperature: 0.7,
		Rules:       []string{"keep it short"},
	}, nil)
	p.client = client
	return p
}

func TestProcessPlainCommand(t *testing.T) {
	client := &fakeCompleter{responses: []string{"Salt wind bends the pine"}}
	p := newTestProcessor(client)

	got, err := p.Process(context.Background(), "juno write a haiku about the sea", "", Options{})
	require.NoError(t, err)
	require.Equal(t, "Salt wind bends the pine", got)

	require.Equal(t, 1, client.callCount())
	call := client.calls[0]
	require.Equal(t, "gpt-4", call.model)
	require.InDelta(t, 0.7, call.temperature, 1e-9)
	require.Equal(t, "juno write a haiku about the sea", call.user)
	require.Contains(t, call.system, "keep it short")
	require.Contains(t, call.system, "Never repeat the highlighted text")
}

func TestProcessFormatsSelectionBlock(t *testing.T) {
	client := &fakeCompleter{responses: []string{"ok"}}
	p := newTestProcessor(client)

	_, err := p.Process(context.Background(), "explain this", "the function f computes the factorial recursively", Options{})
	require.NoError(t, err)

	call := client.calls[0]
	require.Equal(t, "explain this\n\nHIGHLIGHTED TEXT:\n\"\"\"the function f computes the factorial recursively\"\"\"", call.user)
}

func TestProcessEchoGuardRetriesOnce(t *testing.T) {
	selection := strings.Repeat("distinctive phrasing elements appearing repeatedly ", 4)
	require.Greater(t, len(selection), 100)

	client := &fakeCompleter{responses: []string{
		selection, // echoes the whole selection
		selection, // second response used unconditionally
	}}
	p := newTestProcessor(client)

	got, err := p.Process(context.Background(), "rewrite this", selection, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, client.callCount())
	require.Equal(t, strings.TrimSpace(selection), got)
	require.Contains(t, client.calls[1].user, "Do not repeat the highlighted text")
}

func TestProcessEchoGuardSkippedForShortSelection(t *testing.T) {
	client := &fakeCompleter{responses: []string{"short echo short echo"}}
	p := newTestProcessor(client)

	_, err := p.Process(context.Background(), "rewrite this", "short echo", Options{})
	require.NoError(t, err)
	require.Equal(t, 1, client.callCount())
}

func TestProcessSanitizesResponse(t *testing.T) {
	client := &fakeCompleter{responses: []string{"```\nplain text\n\n\n\nwith gaps\n```"}}
	p := newTestProcessor(client)

	got, err := p.Process(context.Background(), "fix this", "", Options{})
	require.NoError(t, err)
	require.Equal(t, "plain text\n\nwith gaps", got)
}

func TestProcessProviderErrorPassesThrough(t *testing.T) {
	client := &fakeCompleter{errs: []error{&ProviderError{Kind: KindRateLimited, Status: 429}}}
	p := newTestProcessor(client)

	_, err := p.Process(context.Background(), "explain this", "", Options{})
	require.Error(t, err)
	require.Equal(t, KindRateLimited, KindOf(err))
}

func TestProcessCancelReturnsSentinel(t *testing.T) {
	client := &fakeCompleter{block: make(chan struct{})}
	p := newTestProcessor(client)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "explain this", "", Options{})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return client.callCount() == 1 }, time.Second, 5*time.Millisecond)
	p.Cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("process did not return after cancel")
	}
}

func TestNewProcessCancelsPrior(t *testing.T) {
	block := make(chan struct{})
	client := &fakeCompleter{block: block, responses: []string{"first", "second"}}
	p := newTestProcessor(client)

	firstErr := make(chan error, 1)
	go func() {
		_, err := p.Process(context.Background(), "first command", "", Options{})
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return client.callCount() == 1 }, time.Second, 5*time.Millisecond)

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = p.Process(context.Background(), "second command", "", Options{})
	}()

	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("first process not cancelled")
	}

	close(block)
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second process did not finish")
	}
}

func TestProcessTimeout(t *testing.T) {
	client := &fakeCompleter{block: make(chan struct{})}
	p := New(Config{APIKey: "sk", Model: "gpt-4", Timeout: 30 * time.Millisecond}, nil)
	p.client = client

	_, err := p.Process(context.Background(), "explain this", "", Options{})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCancelled)
}
