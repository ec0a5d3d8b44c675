// ABOUTME: Playback fallback using the oto library
// ABOUTME: Pull-based float32 sink for hosts without PortAudio
package engine

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"

	"github.com/ebitengine/oto/v3"

	"github.com/acau-audio/acau-go/pkg/protocol"
)

// OtoOutput plays interleaved float32 audio pulled from a callback.
// It is the playback path selected with -output-backend oto.
type OtoOutput struct {
	player *oto.Player
	ready  bool
}

// NewOtoOutput creates an idle oto output.
func NewOtoOutput() *OtoOutput {
	return &OtoOutput{}
}

// Open initializes oto and starts pulling. pull fills the given slice
// with interleaved samples, zero-filling on underrun, and returns the
// count of real samples delivered.
func (o *OtoOutput) Open(cfg protocol.StreamConfig, pull func(dst []float32) int) error {
	op := &oto.NewContextOptions{
		SampleRate:   int(cfg.SampleRate),
		ChannelCount: int(cfg.Channels),
		Format:       oto.FormatFloat32LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.player = ctx.NewPlayer(&pullReader{pull: pull})
	o.player.Play()
	o.ready = true

	log.Printf("engine: oto output initialized (%d Hz, %d channels)",
		cfg.SampleRate, cfg.Channels)
	return nil
}

// Close stops playback.
func (o *OtoOutput) Close() error {
	if !o.ready {
		return nil
	}
	o.ready = false
	return o.player.Close()
}

// pullReader adapts the pull callback to the io.Reader oto consumes.
type pullReader struct {
	pull    func(dst []float32) int
	scratch []float32
}

func (r *pullReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}

	if cap(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	buf := r.scratch[:n]
	r.pull(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}
