package audio

import "time"

// PausedInterval is one half-open pause range, as offsets from clip start.
type PausedInterval struct {
	Start time.Duration
	End   time.Duration
}

// Clip is one finalized mono s16 recording produced by a stop or cancel.
//
// Samples never include audio captured inside a paused interval, so the
// derived duration is the wall time minus the summed pauses.
type Clip struct {
	PCM             []byte
	SampleRate      int
	StartedAt       time.Time
	PausedIntervals []PausedInterval
	Stats           ClipStats
}

// Duration derives clip length from the retained sample count.
func (c *Clip) Duration() time.Duration {
	return Duration(len(c.PCM)/2, c.SampleRate)
}

// Samples decodes the PCM payload into s16 samples.
func (c *Clip) Samples() []int16 {
	return SamplesFromBytes(c.PCM)
}

// PausedTotal sums all recorded pause intervals.
func (c *Clip) PausedTotal() time.Duration {
	var total time.Duration
	for _, interval := range c.PausedIntervals {
		total += interval.End - interval.Start
	}
	return total
}
