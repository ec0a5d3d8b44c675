// ABOUTME: Block-rate pump driving a source into a sink
// ABOUTME: Stands in for the capture device when streaming a tone or a file
package source

import (
	"context"
	"log"
	"time"
)

// SinkFunc receives one planar block per tick, matching the capture
// callback the audio device would otherwise invoke.
type SinkFunc func(channelData [][]float32, numChannels, numSamples int)

// Pump ticks at the block period and pushes source blocks into a sink.
type Pump struct {
	source    Source
	sink      SinkFunc
	channels  int
	blockSize int
	period    time.Duration
}

// NewPump creates a pump producing blockSize-frame blocks at the
// source's sample rate.
func NewPump(src Source, sink SinkFunc, blockSize int) *Pump {
	period := time.Duration(blockSize) * time.Second / time.Duration(src.SampleRate())
	return &Pump{
		source:    src,
		sink:      sink,
		channels:  src.Channels(),
		blockSize: blockSize,
		period:    period,
	}
}

// Run pumps blocks until the context is cancelled or the source fails.
func (p *Pump) Run(ctx context.Context) {
	channelData := make([][]float32, p.channels)
	for ch := range channelData {
		channelData[ch] = make([]float32, p.blockSize)
	}

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := p.source.Fill(channelData, p.channels, p.blockSize)
		if err != nil {
			log.Printf("source: fill failed: %v", err)
			return
		}
		if n == 0 {
			continue
		}

		p.sink(channelData, p.channels, n)
	}
}
