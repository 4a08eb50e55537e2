package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// loudChunk builds a chunk whose samples alternate ±amplitude.
func loudChunk(n int, amplitude int16) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return samples
}

func TestAnalyzeChunkSilence(t *testing.T) {
	stats := AnalyzeChunk(make([]int16, 320))
	require.Zero(t, stats.RMS)
	require.Zero(t, stats.PercentAbove)
	require.Zero(t, stats.MaxConsecutiveAbove)
	require.False(t, stats.IsSpeech)
}

func TestAnalyzeChunkSpeech(t *testing.T) {
	stats := AnalyzeChunk(loudChunk(320, 1000))
	require.InDelta(t, 1000, stats.RMS, 1)
	require.InDelta(t, 100, stats.PercentAbove, 0.01)
	require.Equal(t, int16(1000), stats.Peak)
	require.True(t, stats.IsSpeech)
}

func TestAnalyzeChunkQuietHumIsNotSpeech(t *testing.T) {
	// Every sample above the count threshold but RMS below 50.
	stats := AnalyzeChunk(loudChunk(320, 20))
	require.Greater(t, stats.PercentAbove, 3.0)
	require.Less(t, stats.RMS, 50.0)
	require.False(t, stats.IsSpeech)
}

func TestAnalyzeChunkSparseSpikesAreNotSpeech(t *testing.T) {
	samples := make([]int16, 1000)
	for i := 0; i < 1000; i += 100 {
		samples[i] = 30000
	}
	stats := AnalyzeChunk(samples)
	require.LessOrEqual(t, stats.PercentAbove, 3.0)
	require.False(t, stats.IsSpeech)
	require.Equal(t, 1, stats.MaxConsecutiveAbove)
}

func TestAnalyzeChunkEmpty(t *testing.T) {
	require.Zero(t, AnalyzeChunk(nil))
}

func TestClipStatsAccumulation(t *testing.T) {
	var clip ClipStats

	silent := make([]int16, 320)
	clip.Add(silent, AnalyzeChunk(silent))
	require.False(t, clip.HasRealSpeech())

	loud := loudChunk(320, 2000)
	clip.Add(loud, AnalyzeChunk(loud))

	require.Equal(t, 640, clip.SampleCount())
	require.True(t, clip.HasRealSpeech())
	require.Greater(t, clip.PeakRMS, 50.0)
	require.Equal(t, 320, clip.MaxConsecutiveAbove)
}

func TestClipStatsQualifiesOnAnyBranch(t *testing.T) {
	// Peak branch only: one loud chunk among much silence.
	var peakOnly ClipStats
	loud := loudChunk(32, 60)
	peakOnly.Add(loud, AnalyzeChunk(loud))
	for i := 0; i < 100; i++ {
		silent := make([]int16, 320)
		peakOnly.Add(silent, AnalyzeChunk(silent))
	}
	require.Less(t, peakOnly.PercentAbove(), 2.0)
	require.Less(t, peakOnly.AverageRMS(), 20.0)
	require.GreaterOrEqual(t, peakOnly.PeakRMS, 50.0)
	require.True(t, peakOnly.HasRealSpeech())

	var silentClip ClipStats
	for i := 0; i < 100; i++ {
		chunk := make([]int16, 320)
		silentClip.Add(chunk, AnalyzeChunk(chunk))
	}
	require.False(t, silentClip.HasRealSpeech())
}

func TestLevelMeterSmoothing(t *testing.T) {
	var meter LevelMeter

	first := meter.Update(loudChunk(320, 16384))
	for _, bar := range first {
		require.Greater(t, bar, 0.0)
		require.LessOrEqual(t, bar, 1.0)
	}

	// Silence decays the bars by the smoothing weight each update.
	second := meter.Update(make([]int16, 320))
	for i := range second {
		require.InDelta(t, first[i]*levelSmoothing, second[i], 1e-9)
	}

	meter.Reset()
	require.Equal(t, [LevelBars]float64{}, meter.Levels())
}

func TestLevelMeterEmptyChunkKeepsState(t *testing.T) {
	var meter LevelMeter
	meter.Update(loudChunk(320, 8000))
	before := meter.Levels()
	require.Equal(t, before, meter.Update(nil))
}
