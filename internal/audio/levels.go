package audio

import "math"

// LevelBars is the number of bars in the overlay level vector.
const LevelBars = 10

// levelSmoothing is the exponential filter weight on the previous value.
const levelSmoothing = 0.2

// LevelMeter maintains the smoothed bar vector fed to the recording overlay.
type LevelMeter struct {
	bars [LevelBars]float64
}

// Update folds one chunk of samples into the smoothed level vector and
// returns a snapshot.
func (m *LevelMeter) Update(samples []int16) [LevelBars]float64 {
	if len(samples) == 0 {
		return m.bars
	}

	segment := len(samples) / LevelBars
	if segment == 0 {
		segment = len(samples)
	}

	for bar := 0; bar < LevelBars; bar++ {
		start := bar * segment
		if start >= len(samples) {
			m.bars[bar] = levelSmoothing * m.bars[bar]
			continue
		}
		end := start + segment
		if bar == LevelBars-1 || end > len(samples) {
			end = len(samples)
		}

		var sumSquares float64
		for _, s := range samples[start:end] {
			sumSquares += float64(s) * float64(s)
		}
		rms := math.Sqrt(sumSquares / float64(end-start))

		// Normalize against full-scale s16 and clamp to [0, 1].
		level := rms / 32768.0
		if level > 1 {
			level = 1
		}
		m.bars[bar] = levelSmoothing*m.bars[bar] + (1-levelSmoothing)*level
	}

	return m.bars
}

// Levels returns the current smoothed bar vector.
func (m *LevelMeter) Levels() [LevelBars]float64 {
	return m.bars
}

// Reset zeroes the vector between utterances.
func (m *LevelMeter) Reset() {
	m.bars = [LevelBars]float64{}
}
