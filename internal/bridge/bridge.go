// ABOUTME: Converts between planar device buffers and interleaved wire audio
// ABOUTME: Receiver side couples the network thread to playback through a ring
package bridge

import (
	"sync/atomic"

	"github.com/acau-audio/acau-go/pkg/protocol"
	"github.com/acau-audio/acau-go/pkg/ringbuf"
)

// Interleave lays out planar channel data frame-major into dst, which
// must hold numChannels*numSamples elements.
func Interleave(dst []float32, channelData [][]float32, numChannels, numSamples int) {
	for i := 0; i < numSamples; i++ {
		for ch := 0; ch < numChannels; ch++ {
			dst[i*numChannels+ch] = channelData[ch][i]
		}
	}
}

// Deinterleave splits frame-major src back into planar channel buffers.
func Deinterleave(channelData [][]float32, src []float32, numChannels, numSamples int) {
	for i := 0; i < numSamples; i++ {
		for ch := 0; ch < numChannels; ch++ {
			channelData[ch][i] = src[i*numChannels+ch]
		}
	}
}

// Stats counts ring-buffer pressure events on the receiver side.
type Stats struct {
	OverflowSamples uint64 // samples dropped because the ring was full
	UnderrunSamples uint64 // samples zero-filled because the ring was empty
}

// Receiver couples the network goroutine (producer) to the realtime
// playback callback (consumer) through an SPSC ring sized for one
// second of audio. Exactly one goroutine may call OnAudioReceived and
// exactly one may call Playback or ReadInterleaved.
type Receiver struct {
	ring     *ringbuf.Ring[float32]
	scratch  []float32
	overflow atomic.Uint64
	underrun atomic.Uint64
}

// NewReceiver sizes the jitter ring for one second at cfg's rate.
func NewReceiver(cfg protocol.StreamConfig) *Receiver {
	capacity := int(cfg.SampleRate) * int(cfg.Channels)
	return &Receiver{
		ring:    ringbuf.New[float32](capacity),
		scratch: make([]float32, int(cfg.BufferSize)*int(cfg.Channels)),
	}
}

// OnAudioReceived is the transport's audio-received callback: it pushes
// the interleaved chunk into the ring. Excess samples are dropped
// silently when the ring is full.
func (r *Receiver) OnAudioReceived(samples []float32, channels, numSamples int) {
	total := channels * numSamples
	n := r.ring.Write(samples[:total])
	if n < total {
		r.overflow.Add(uint64(total - n))
	}
}

// ReadInterleaved pulls up to len(dst) samples, zero-filling the
// remainder on underrun, and returns the count actually read.
func (r *Receiver) ReadInterleaved(dst []float32) int {
	n := r.ring.Read(dst)
	if n < len(dst) {
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		r.underrun.Add(uint64(len(dst) - n))
	}
	return n
}

// Playback is the device's pull callback: it fills the planar output
// block, zero-filled on underrun, and reports whether any real audio
// was delivered.
func (r *Receiver) Playback(channelData [][]float32, numChannels, numSamples int) bool {
	total := numChannels * numSamples
	if cap(r.scratch) < total {
		r.scratch = make([]float32, total)
	}
	buf := r.scratch[:total]

	n := r.ReadInterleaved(buf)
	Deinterleave(channelData, buf, numChannels, numSamples)
	return n > 0
}

// Buffered returns the number of samples waiting in the ring.
func (r *Receiver) Buffered() int {
	return r.ring.Size()
}

// Stats returns the cumulative overflow and underrun counts.
func (r *Receiver) Stats() Stats {
	return Stats{
		OverflowSamples: r.overflow.Load(),
		UnderrunSamples: r.underrun.Load(),
	}
}
