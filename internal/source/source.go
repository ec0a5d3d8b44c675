// ABOUTME: Audio source abstraction for the sender
// ABOUTME: Sources fill planar float32 blocks at a fixed rate
package source

import "fmt"

// Source provides planar float32 PCM blocks for streaming when no
// capture device is in use.
type Source interface {
	// Fill writes up to numSamples frames into channelData and returns
	// the number of frames produced.
	Fill(channelData [][]float32, numChannels, numSamples int) (int, error)
	// SampleRate returns the source's native sample rate.
	SampleRate() int
	// Channels returns the source's channel count.
	Channels() int
	Close() error
}

// New selects a source: an MP3 file when path is non-empty, otherwise a
// test tone at toneFreq.
func New(path string, sampleRate, channels int, toneFreq float64) (Source, error) {
	if path == "" {
		return NewTone(sampleRate, channels, toneFreq), nil
	}
	src, err := NewMP3(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	return src, nil
}
