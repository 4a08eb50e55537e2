package transcribe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahorihuela/juno/internal/audio"
)

// fakeProvider scripts per-attempt outcomes and records observed WAV paths.
type fakeProvider struct {
	mu       sync.Mutex
	outcomes []fakeOutcome
	paths    []string
	calls    int
	block    chan struct{}
}

type fakeOutcome struct {
	text string
	err  error
}

func (f *fakeProvider) Transcribe(ctx context.Context, wavPath string, _ Options) (string, []byte, error) {
	f.mu.Lock()
	f.paths = append(f.paths, wavPath)
	idx := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return "", nil, ErrCancelled
		case <-block:
		}
	}

	if idx >= len(f.outcomes) {
		return "", nil, &ProviderError{Kind: KindOther, Status: 500, Body: "unscripted call"}
	}
	out := f.outcomes[idx]
	if out.err != nil {
		return "", nil, out.err
	}
	return out.text, []byte(`{"text":"` + out.text + `"}`), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testClip(seconds float64) *audio.Clip {
	n := int(seconds * float64(audio.SampleRate))
	pcm := make([]byte, n*2)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = byte(i)
	}
	return &audio.Clip{PCM: pcm, SampleRate: audio.SampleRate}
}

func newTestOrchestrator(provider provider) *Orchestrator {
	o := New(Config{
		APIKey:       "sk-test",
		Model:        "whisper-1",
		Language:     "en",
		CacheEnabled: true,
		CacheSize:    10,
		CacheTTL:     time.Minute,
	}, nil)
	o.provider = provider
	return o
}

func TestTranscribeSuccessAndTempFileCleanup(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{{text: "the quick brown fox"}}}
	o := newTestOrchestrator(provider)

	result, err := o.Transcribe(context.Background(), testClip(2), Options{UseCache: true})
	require.NoError(t, err)
	require.Equal(t, "the quick brown fox", result.Text)
	require.NotEmpty(t, result.ID)
	require.False(t, result.IssuedAt.IsZero())

	require.Len(t, provider.paths, 1)
	require.Contains(t, filepath.Base(provider.paths[0]), "whisper-")
	_, statErr := os.Stat(provider.paths[0])
	require.True(t, os.IsNotExist(statErr), "temp wav must be unlinked")
}

func TestTranscribeCacheHitSkipsProvider(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{{text: "cached once"}, {text: "should not be called"}}}
	o := newTestOrchestrator(provider)
	clip := testClip(1)

	first, err := o.Transcribe(context.Background(), clip, Options{UseCache: true})
	require.NoError(t, err)

	second, err := o.Transcribe(context.Background(), clip, Options{UseCache: true})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, provider.callCount())

	stats := o.CacheStats()
	require.Equal(t, int64(1), stats.Hits)
}

func TestTranscribeCacheDisabledByOption(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{{text: "a"}, {text: "b"}}}
	o := newTestOrchestrator(provider)
	clip := testClip(1)

	_, err := o.Transcribe(context.Background(), clip, Options{UseCache: false})
	require.NoError(t, err)
	_, err = o.Transcribe(context.Background(), clip, Options{UseCache: false})
	require.NoError(t, err)
	require.Equal(t, 2, provider.callCount())
}

func TestTranscribeDifferentOptionsMissCache(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{{text: "en text"}, {text: "de text"}}}
	o := newTestOrchestrator(provider)
	clip := testClip(1)

	_, err := o.Transcribe(context.Background(), clip, Options{UseCache: true, Language: "en"})
	require.NoError(t, err)
	result, err := o.Transcribe(context.Background(), clip, Options{UseCache: true, Language: "de"})
	require.NoError(t, err)
	require.Equal(t, "de text", result.Text)
	require.Equal(t, 2, provider.callCount())
}

func TestRateLimitRetriesOnceThenSucceeds(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{
		{err: &ProviderError{Kind: KindRateLimited, Status: 429}},
		{text: "after retry"},
	}}
	o := newTestOrchestrator(provider)

	var retries []ErrorKind
	o.OnRetry = func(kind ErrorKind) { retries = append(retries, kind) }

	result, err := o.Transcribe(context.Background(), testClip(1), Options{})
	require.NoError(t, err)
	require.Equal(t, "after retry", result.Text)
	require.Equal(t, []ErrorKind{KindRateLimited}, retries)
}

func TestRateLimitRetriesOnlyOnce(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{
		{err: &ProviderError{Kind: KindRateLimited, Status: 429}},
		{err: &ProviderError{Kind: KindRateLimited, Status: 429}},
		{text: "never reached"},
	}}
	o := newTestOrchestrator(provider)

	_, err := o.Transcribe(context.Background(), testClip(1), Options{})
	require.Error(t, err)
	require.Equal(t, KindRateLimited, KindOf(err))
	require.Equal(t, 2, provider.callCount())
}

func TestServerErrorRetriesTwiceMore(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{
		{err: &ProviderError{Kind: KindOther, Status: 502}},
		{err: &ProviderError{Kind: KindOther, Status: 503}},
		{text: "third time lucky"},
	}}
	o := newTestOrchestrator(provider)

	result, err := o.Transcribe(context.Background(), testClip(1), Options{})
	require.NoError(t, err)
	require.Equal(t, "third time lucky", result.Text)
	require.Equal(t, 3, provider.callCount())
}

func TestInvalidKeyIsFatal(t *testing.T) {
	provider := &fakeProvider{outcomes: []fakeOutcome{
		{err: &ProviderError{Kind: KindInvalidKey, Status: 401}},
		{text: "never reached"},
	}}
	o := newTestOrchestrator(provider)

	_, err := o.Transcribe(context.Background(), testClip(1), Options{})
	require.Error(t, err)
	require.Equal(t, KindInvalidKey, KindOf(err))
	require.Equal(t, 1, provider.callCount())
}

func TestCancelAbortsInFlightAndCleansTempFile(t *testing.T) {
	provider := &fakeProvider{block: make(chan struct{})}
	o := newTestOrchestrator(provider)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Transcribe(context.Background(), testClip(1), Options{})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return provider.callCount() == 1 }, time.Second, 5*time.Millisecond)
	o.Cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("transcribe did not return after cancel")
	}

	require.Eventually(t, func() bool {
		_, statErr := os.Stat(provider.paths[0])
		return os.IsNotExist(statErr)
	}, time.Second, 5*time.Millisecond)
}

func TestNewTranscribeCancelsPriorInFlight(t *testing.T) {
	block := make(chan struct{})
	provider := &fakeProvider{block: block, outcomes: []fakeOutcome{{text: "first"}, {text: "second"}}}
	o := newTestOrchestrator(provider)

	firstErr := make(chan error, 1)
	go func() {
		_, err := o.Transcribe(context.Background(), testClip(1), Options{})
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return provider.callCount() == 1 }, time.Second, 5*time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		_, err := o.Transcribe(context.Background(), testClip(2), Options{})
		secondDone <- err
	}()

	// The first call is cancelled by the second's arrival.
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("first transcribe not cancelled")
	}

	close(block)
	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second transcribe did not finish")
	}
}

func TestShutdownPersistsCacheStats(t *testing.T) {
	dir := t.TempDir()
	o := New(Config{
		APIKey:       "sk-test",
		Model:        "whisper-1",
		CacheEnabled: true,
		CacheDir:     dir,
	}, nil)
	o.provider = &fakeProvider{outcomes: []fakeOutcome{{text: "persisted"}}}

	_, err := o.Transcribe(context.Background(), testClip(1), Options{UseCache: true})
	require.NoError(t, err)
	require.NoError(t, o.Shutdown())

	content, err := os.ReadFile(filepath.Join(dir, "stats.json"))
	require.NoError(t, err)

	var stats CacheStats
	require.NoError(t, json.Unmarshal(content, &stats))
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, int64(1), stats.Misses)
}

func TestCacheEvictsLRUAndExpires(t *testing.T) {
	cache := newResultCache(2, 40*time.Millisecond)
	cache.Put("a", Result{Text: "a"})
	cache.Put("b", Result{Text: "b"})
	cache.Put("c", Result{Text: "c"})

	_, ok := cache.Get("a")
	require.False(t, ok, "oldest entry evicted on overflow")
	_, ok = cache.Get("c")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = cache.Get("c")
	require.False(t, ok, "entries expire after TTL")
}
