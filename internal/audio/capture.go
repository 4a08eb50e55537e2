package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// ChunkSizeBytes is 20ms of 16kHz mono s16 audio.
	ChunkSizeBytes = 640

	// ringCapacity bounds buffered chunks between producer and consumer.
	ringCapacity = 128
)

// Capture streams fixed-size PCM chunks from one selected Pulse source.
//
// The chunk channel acts as a bounded ring: when the consumer lags, the
// oldest buffered chunk is dropped and counted rather than blocking the
// Pulse callback.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	paused   atomic.Bool
	inflight sync.WaitGroup
	bytes    atomic.Int64
	dropped  atomic.Int64
}

// StartCapture creates and starts a 16kHz mono s16 record stream.
func StartCapture(ctx context.Context, selected Device) (*Capture, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{
		device: selected,
		client: client,
		chunks: make(chan []byte, ringCapacity),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(ChunkSizeBytes),
		pulse.RecordMediaName("juno dictation"),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (c *Capture) Chunks() <-chan []byte {
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse while unpaused.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// DroppedChunks reports chunks discarded because the consumer lagged.
func (c *Capture) DroppedChunks() int64 {
	return c.dropped.Load()
}

// SetPaused gates chunk production without closing the underlying device.
func (c *Capture) SetPaused(paused bool) {
	c.paused.Store(paused)
}

// Paused reports the current gate state.
func (c *Capture) Paused() bool {
	return c.paused.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 && !c.paused.Load() {
		select {
		case c.chunks <- pending:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw Pulse frames and emits ChunkSizeBytes slices to c.chunks.
//
// Frames arriving while paused are discarded without touching the pending
// buffer, so a paused interval contributes no samples at all.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	if c.paused.Load() {
		return len(buffer), nil
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)

	chunks := make([][]byte, 0, len(c.pending)/ChunkSizeBytes)
	for len(c.pending) >= ChunkSizeBytes {
		chunk := make([]byte, ChunkSizeBytes)
		copy(chunk, c.pending[:ChunkSizeBytes])
		c.pending = c.pending[ChunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		c.offer(chunk)
	}

	return len(buffer), nil
}

// offer enqueues one chunk, evicting the oldest buffered chunk on overflow.
func (c *Capture) offer(chunk []byte) {
	select {
	case <-c.stopCh:
		return
	case c.chunks <- chunk:
		return
	default:
	}

	select {
	case <-c.chunks:
		c.dropped.Add(1)
	default:
	}

	select {
	case <-c.stopCh:
	case c.chunks <- chunk:
	default:
		c.dropped.Add(1)
	}
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
