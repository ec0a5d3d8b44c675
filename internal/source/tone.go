// ABOUTME: Sine test tone source
// ABOUTME: Generates a fixed-frequency tone at half amplitude on every channel
package source

import "math"

// Tone generates a continuous sine wave, phase-continuous across blocks.
type Tone struct {
	sampleRate int
	channels   int
	frequency  float64
	phase      float64
	phaseInc   float64
}

// NewTone creates a tone source. The amplitude is fixed at 0.5.
func NewTone(sampleRate, channels int, frequency float64) *Tone {
	return &Tone{
		sampleRate: sampleRate,
		channels:   channels,
		frequency:  frequency,
		phaseInc:   2 * math.Pi * frequency / float64(sampleRate),
	}
}

// Fill writes numSamples frames of the tone into every channel.
func (t *Tone) Fill(channelData [][]float32, numChannels, numSamples int) (int, error) {
	for i := 0; i < numSamples; i++ {
		sample := float32(math.Sin(t.phase) * 0.5)
		t.phase += t.phaseInc
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}

		for ch := 0; ch < numChannels; ch++ {
			channelData[ch][i] = sample
		}
	}
	return numSamples, nil
}

// FillInterleaved writes numSamples frames frame-major into data.
func (t *Tone) FillInterleaved(data []float32, numChannels, numSamples int) {
	for i := 0; i < numSamples; i++ {
		sample := float32(math.Sin(t.phase) * 0.5)
		t.phase += t.phaseInc
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}

		for ch := 0; ch < numChannels; ch++ {
			data[i*numChannels+ch] = sample
		}
	}
}

func (t *Tone) SampleRate() int { return t.sampleRate }
func (t *Tone) Channels() int   { return t.channels }
func (t *Tone) Close() error    { return nil }
