// ABOUTME: PortAudio device layer invoking planar capture and playback callbacks
// ABOUTME: The device driver owns the realtime thread; callbacks must not block
package engine

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"

	"github.com/acau-audio/acau-go/pkg/protocol"
)

// CaptureFunc receives each captured planar block on the device thread.
type CaptureFunc func(channelData [][]float32, numChannels, numSamples int)

// PlaybackFunc fills each planar output block on the device thread and
// reports whether real audio was delivered. On false the block has
// already been zero-filled by the callee.
type PlaybackFunc func(channelData [][]float32, numChannels, numSamples int) bool

// Engine wraps a PortAudio stream in either capture or playback
// direction. The driver invokes the registered callback serially on its
// realtime thread.
type Engine struct {
	cfg        protocol.StreamConfig
	stream     *portaudio.Stream
	captureCb  CaptureFunc
	playbackCb PlaybackFunc
	deviceName string
	open       bool
}

// New creates an engine for the given stream format.
func New(cfg protocol.StreamConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Initialize brings up the PortAudio runtime. Must be paired with
// Terminate.
func (e *Engine) Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return nil
}

// Terminate shuts the PortAudio runtime down.
func (e *Engine) Terminate() {
	if err := portaudio.Terminate(); err != nil {
		log.Printf("engine: terminate failed: %v", err)
	}
}

// SetCaptureCallback registers the capture hand-off. Must be called
// before OpenInput.
func (e *Engine) SetCaptureCallback(cb CaptureFunc) {
	e.captureCb = cb
}

// SetPlaybackCallback registers the playback pull. Must be called
// before OpenOutput.
func (e *Engine) SetPlaybackCallback(cb PlaybackFunc) {
	e.playbackCb = cb
}

// OpenInput opens a capture stream on the named device, or the default
// input device when the name is empty, and starts it.
func (e *Engine) OpenInput(deviceName string) error {
	if e.open {
		return fmt.Errorf("device already open")
	}

	channels := int(e.cfg.Channels)
	frames := int(e.cfg.BufferSize)

	cb := func(in [][]float32) {
		if e.captureCb != nil && len(in) > 0 {
			e.captureCb(in, len(in), len(in[0]))
		}
	}

	var stream *portaudio.Stream
	var err error
	if deviceName == "" {
		stream, err = portaudio.OpenDefaultStream(channels, 0, float64(e.cfg.SampleRate), frames, cb)
	} else {
		dev, derr := findDevice(deviceName, true)
		if derr != nil {
			return derr
		}
		params := portaudio.LowLatencyParameters(dev, nil)
		params.Input.Channels = channels
		params.SampleRate = float64(e.cfg.SampleRate)
		params.FramesPerBuffer = frames
		stream, err = portaudio.OpenStream(params, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to open input device: %w", err)
	}

	return e.start(stream, deviceName)
}

// OpenOutput opens a playback stream on the named device, or the
// default output device when the name is empty, and starts it.
func (e *Engine) OpenOutput(deviceName string) error {
	if e.open {
		return fmt.Errorf("device already open")
	}

	channels := int(e.cfg.Channels)
	frames := int(e.cfg.BufferSize)

	cb := func(out [][]float32) {
		if e.playbackCb == nil {
			zeroFill(out)
			return
		}
		if len(out) > 0 {
			e.playbackCb(out, len(out), len(out[0]))
		}
	}

	var stream *portaudio.Stream
	var err error
	if deviceName == "" {
		stream, err = portaudio.OpenDefaultStream(0, channels, float64(e.cfg.SampleRate), frames, cb)
	} else {
		dev, derr := findDevice(deviceName, false)
		if derr != nil {
			return derr
		}
		params := portaudio.LowLatencyParameters(nil, dev)
		params.Output.Channels = channels
		params.SampleRate = float64(e.cfg.SampleRate)
		params.FramesPerBuffer = frames
		stream, err = portaudio.OpenStream(params, cb)
	}
	if err != nil {
		return fmt.Errorf("failed to open output device: %w", err)
	}

	return e.start(stream, deviceName)
}

func (e *Engine) start(stream *portaudio.Stream, deviceName string) error {
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	e.stream = stream
	e.deviceName = deviceName
	e.open = true

	log.Printf("engine: device open (%d Hz, %d channels, %d frames)",
		e.cfg.SampleRate, e.cfg.Channels, e.cfg.BufferSize)
	return nil
}

// Close stops and closes the device stream.
func (e *Engine) Close() {
	if !e.open {
		return
	}
	if err := e.stream.Stop(); err != nil {
		log.Printf("engine: stop failed: %v", err)
	}
	if err := e.stream.Close(); err != nil {
		log.Printf("engine: close failed: %v", err)
	}
	e.stream = nil
	e.open = false
}

// IsOpen reports whether a device stream is active.
func (e *Engine) IsOpen() bool { return e.open }

// DeviceName returns the opened device's name, empty for the default.
func (e *Engine) DeviceName() string { return e.deviceName }

// Config returns the engine's stream format.
func (e *Engine) Config() protocol.StreamConfig { return e.cfg }

func zeroFill(out [][]float32) {
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
}
