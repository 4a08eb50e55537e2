package audio

import "math"

// Chunk-level speech thresholds.
const (
	sampleAboveThreshold = 5
	chunkSpeechPercent   = 3.0
	chunkSpeechRMS       = 50.0
)

// Clip-level qualification thresholds.
const (
	clipSpeechPercent = 2.0
	clipSpeechAvgRMS  = 20.0
	clipSpeechPeakRMS = 50.0
)

// ChunkStats is the voice-activity analysis of one capture chunk.
type ChunkStats struct {
	RMS                 float64
	Peak                int16
	PercentAbove        float64
	MaxConsecutiveAbove int
	IsSpeech            bool
}

// AnalyzeChunk computes voice-activity statistics over one chunk of samples.
//
// A sample counts as "above threshold" when its absolute value exceeds 5;
// the chunk qualifies as speech when more than 3% of samples are above
// threshold and the RMS exceeds 50.
func AnalyzeChunk(samples []int16) ChunkStats {
	if len(samples) == 0 {
		return ChunkStats{}
	}

	var (
		sumSquares  float64
		above       int
		consecutive int
		stats       ChunkStats
	)

	for _, s := range samples {
		abs := int(s)
		if abs < 0 {
			abs = -abs
		}
		if int16(abs) > stats.Peak {
			stats.Peak = int16(abs)
		}
		sumSquares += float64(s) * float64(s)

		if abs > sampleAboveThreshold {
			above++
			consecutive++
			if consecutive > stats.MaxConsecutiveAbove {
				stats.MaxConsecutiveAbove = consecutive
			}
		} else {
			consecutive = 0
		}
	}

	stats.RMS = math.Sqrt(sumSquares / float64(len(samples)))
	stats.PercentAbove = 100 * float64(above) / float64(len(samples))
	stats.IsSpeech = stats.PercentAbove > chunkSpeechPercent && stats.RMS > chunkSpeechRMS
	return stats
}

// ClipStats accumulates voice-activity statistics across a whole clip.
type ClipStats struct {
	sampleCount int
	sumSquares  float64
	above       int
	consecutive int

	PeakRMS             float64
	MaxConsecutiveAbove int
}

// Add folds one chunk into the running clip statistics.
func (c *ClipStats) Add(samples []int16, chunk ChunkStats) {
	c.sampleCount += len(samples)
	if chunk.RMS > c.PeakRMS {
		c.PeakRMS = chunk.RMS
	}

	for _, s := range samples {
		abs := int(s)
		if abs < 0 {
			abs = -abs
		}
		c.sumSquares += float64(s) * float64(s)
		if abs > sampleAboveThreshold {
			c.above++
			c.consecutive++
			if c.consecutive > c.MaxConsecutiveAbove {
				c.MaxConsecutiveAbove = c.consecutive
			}
		} else {
			c.consecutive = 0
		}
	}
}

// SampleCount reports total samples folded in so far.
func (c *ClipStats) SampleCount() int {
	return c.sampleCount
}

// AverageRMS is the root mean square over every sample seen.
func (c *ClipStats) AverageRMS() float64 {
	if c.sampleCount == 0 {
		return 0
	}
	return math.Sqrt(c.sumSquares / float64(c.sampleCount))
}

// PercentAbove is the share of samples above the activity threshold.
func (c *ClipStats) PercentAbove() float64 {
	if c.sampleCount == 0 {
		return 0
	}
	return 100 * float64(c.above) / float64(c.sampleCount)
}

// HasRealSpeech decides whether the clip qualifies for transcription.
func (c *ClipStats) HasRealSpeech() bool {
	return c.PercentAbove() >= clipSpeechPercent ||
		c.AverageRMS() >= clipSpeechAvgRMS ||
		c.PeakRMS >= clipSpeechPeakRMS
}
