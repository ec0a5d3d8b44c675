// ABOUTME: Transport backend interface and endpoint status types
// ABOUTME: Defines the state machine states and callback signatures
package transport

import "github.com/acau-audio/acau-go/pkg/protocol"

// State is the endpoint lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStreaming
	StateError
)

// String returns the lowercase state name used by the control API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Status is a point-in-time snapshot of the endpoint. Only the endpoint
// mutates the underlying counters; readers observe a consistent copy.
type Status struct {
	State         State
	PeerAddress   string
	PeerPort      int
	BytesSent     uint64
	BytesReceived uint64
	PacketsLost   uint32
	ErrorMessage  string
}

// AudioReceivedFunc is invoked on each received non-empty chunk with an
// interleaved float32 buffer. The buffer is reused between invocations;
// callees must copy what they keep.
type AudioReceivedFunc func(samples []float32, channels, numSamples int)

// ConnectionFunc is invoked with true when a peer attaches and false
// when it detaches.
type ConnectionFunc func(connected bool)

// Backend is a streaming transport endpoint. An endpoint runs in either
// the sender or the receiver role; Stop returns it to idle so it can be
// restarted in either role.
type Backend interface {
	Name() string
	Description() string

	// StartSender connects to host:port and begins streaming captured
	// audio pushed via SendAudio. Fails if the endpoint is running.
	StartSender(host string, port int, cfg protocol.StreamConfig) error

	// StartReceiver binds 0.0.0.0:port and accepts one sender at a time.
	// Fails if the endpoint is running.
	StartReceiver(port int, cfg protocol.StreamConfig) error

	// Stop tears the endpoint down synchronously. After it returns the
	// state is Disconnected, no background goroutines remain, and the
	// endpoint may be restarted.
	Stop()

	// SendAudio pushes one block of planar audio. Sender role only;
	// returns false when not currently streaming.
	SendAudio(channelData [][]float32, numChannels, numSamples int) bool

	Status() Status

	// Config returns the working stream format. On the receiver this is
	// replaced by the handshake header's values once a sender attaches.
	Config() protocol.StreamConfig

	SetAudioReceivedCallback(cb AudioReceivedFunc)
	SetConnectionCallback(cb ConnectionFunc)
}
