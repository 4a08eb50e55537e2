package recorder

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
)

// cueKind identifies each cue event used by the utterance lifecycle.
type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
	cueError
)

const cueSampleRate = 16000

// toneSpec describes one synthesized cue tone segment.
type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	stopCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	})
	completeCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	})
	cancelCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	})
	errorCuePCM = synthesizeCue([]toneSpec{
		{frequencyHz: 330, duration: 140 * time.Millisecond, volume: 0.2},
	})
)

// cuePlayer serializes cue playback and emits audio asynchronously.
type cuePlayer struct {
	enabled atomic.Bool
	mu      sync.Mutex
	emit    func([]int16) error
}

func newCuePlayer(enabled bool) *cuePlayer {
	p := &cuePlayer{emit: playSynthCue}
	p.enabled.Store(enabled)
	return p
}

// SetEnabled gates playback; a disabled player drops cues silently.
func (p *cuePlayer) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// Play emits one cue without blocking the caller.
func (p *cuePlayer) Play(kind cueKind) {
	if !p.enabled.Load() {
		return
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return
	}
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		_ = p.emit(samples)
	}()
}

// cueSamples returns the synthesized PCM table for one cue kind.
func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueStart:
		return startCuePCM
	case cueStop:
		return stopCuePCM
	case cueComplete:
		return completeCuePCM
	case cueCancel:
		return cancelCuePCM
	case cueError:
		return errorCuePCM
	default:
		return nil
	}
}

// playSynthCue streams synthesized PCM samples through Pulse playback.
func playSynthCue(samples []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("juno"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("juno feedback cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue stream: %w", err)
	}

	return nil
}

// synthesizeCue concatenates one or more tone segments with short silence gaps.
func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(22 * time.Millisecond)
	total := 0
	for i, part := range parts {
		total += samplesForDuration(part.duration)
		if i < len(parts)-1 {
			total += gapSamples
		}
	}

	out := make([]int16, 0, total)
	for i, part := range parts {
		out = append(out, synthesizeTone(part)...)
		if i < len(parts)-1 {
			out = append(out, make([]int16, gapSamples)...)
		}
	}
	return out
}

// synthesizeTone renders one sine segment with a short attack/release ramp.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	ramp := samplesForDuration(6 * time.Millisecond)
	out := make([]int16, n)
	for i := range out {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		} else if remaining := n - i; remaining < ramp {
			envelope = float64(remaining) / float64(ramp)
		}
		value := spec.volume * envelope * math.Sin(2*math.Pi*spec.frequencyHz*float64(i)/float64(cueSampleRate))
		out[i] = int16(value * math.MaxInt16)
	}
	return out
}

func samplesForDuration(d time.Duration) int {
	return int(float64(cueSampleRate) * d.Seconds())
}
