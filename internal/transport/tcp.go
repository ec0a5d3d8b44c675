// ABOUTME: TCP transport backend streaming raw PCM chunks
// ABOUTME: Owns the socket lifecycle, handshake, framing, and keepalives
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/acau-audio/acau-go/pkg/protocol"
)

// TCPBackend streams uncompressed float32 PCM over a single TCP
// connection. The sender pushes blocks via SendAudio; the receiver
// delivers them through the audio-received callback.
type TCPBackend struct {
	running atomic.Bool
	state   atomic.Int32

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	packetsLost   atomic.Uint32

	// sendMu serializes writes to the sender socket so a chunk header
	// and its payload are never interleaved with a keepalive. The
	// sequence counter advances under the same lock so that send order
	// matches sequence order.
	sendMu      sync.Mutex
	conn        net.Conn
	sequence    uint32
	interleaved []float32
	sendBuf     []byte

	connMu   sync.Mutex
	listener net.Listener
	client   net.Conn

	peerMu      sync.Mutex
	peerAddress string
	peerPort    int
	errMsg      string

	cfgMu sync.RWMutex
	cfg   protocol.StreamConfig

	audioCb AudioReceivedFunc
	connCb  ConnectionFunc

	targetHost string
	port       int

	keepaliveInterval time.Duration
	stopChan          chan struct{}
	stopDial          context.CancelFunc
	wg                sync.WaitGroup
}

// ErrAlreadyRunning is returned when a start verb is called on a
// running endpoint.
var ErrAlreadyRunning = errors.New("transport already running")

// NewTCPBackend creates an idle endpoint.
func NewTCPBackend() *TCPBackend {
	return &TCPBackend{
		keepaliveInterval: protocol.KeepaliveInterval,
	}
}

func (b *TCPBackend) Name() string        { return "tcp-pcm" }
func (b *TCPBackend) Description() string { return "TCP with raw PCM audio" }

// SetAudioReceivedCallback registers the receive-side audio hand-off.
// Must be called before the endpoint is started.
func (b *TCPBackend) SetAudioReceivedCallback(cb AudioReceivedFunc) {
	b.audioCb = cb
}

// SetConnectionCallback registers the peer attach/detach notification.
// Must be called before the endpoint is started.
func (b *TCPBackend) SetConnectionCallback(cb ConnectionFunc) {
	b.connCb = cb
}

// StartSender connects to host:port, sends the stream header, and
// enters Streaming. Audio is pushed via SendAudio.
func (b *TCPBackend) StartSender(host string, port int, cfg protocol.StreamConfig) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	b.reset(cfg)
	b.targetHost = host
	b.port = port
	b.setState(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	b.stopDial = cancel

	b.wg.Add(2)
	go b.senderLoop(ctx)
	go b.keepaliveLoop()

	return nil
}

// StartReceiver binds 0.0.0.0:port and accepts one sender at a time.
func (b *TCPBackend) StartReceiver(port int, cfg protocol.StreamConfig) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	b.reset(cfg)
	b.port = port
	b.setState(StateConnecting)

	// Go's TCP listener sets SO_REUSEADDR on the socket, so a stopped
	// receiver can rebind the port immediately.
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		b.setError(fmt.Sprintf("failed to bind to port %d: %v", port, err))
		b.running.Store(false)
		return fmt.Errorf("bind port %d: %w", port, err)
	}

	b.connMu.Lock()
	b.listener = ln
	b.connMu.Unlock()

	b.wg.Add(1)
	go b.acceptLoop(ln)

	return nil
}

// Stop tears the endpoint down. Closing the sockets aborts any blocked
// I/O, so joining the goroutines completes in bounded time.
func (b *TCPBackend) Stop() {
	if b.running.Swap(false) {
		close(b.stopChan)
		if b.stopDial != nil {
			b.stopDial()
		}
		b.closeSockets()
		b.wg.Wait()
	}
	b.setState(StateDisconnected)
}

// SendAudio interleaves one planar block and writes it as a chunk.
// Returns false when the endpoint is not streaming. Callable from a
// realtime audio thread; the socket write happens under the send lock.
func (b *TCPBackend) SendAudio(channelData [][]float32, numChannels, numSamples int) bool {
	if State(b.state.Load()) != StateStreaming {
		return false
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	if b.conn == nil {
		return false
	}

	total := numChannels * numSamples
	if cap(b.interleaved) < total {
		b.interleaved = make([]float32, total)
	}
	buf := b.interleaved[:total]
	for i := 0; i < numSamples; i++ {
		for ch := 0; ch < numChannels; ch++ {
			buf[i*numChannels+ch] = channelData[ch][i]
		}
	}

	return b.writeChunkLocked(buf)
}

// Status returns a snapshot of the endpoint.
func (b *TCPBackend) Status() Status {
	b.peerMu.Lock()
	addr, port, errMsg := b.peerAddress, b.peerPort, b.errMsg
	b.peerMu.Unlock()

	return Status{
		State:         State(b.state.Load()),
		PeerAddress:   addr,
		PeerPort:      port,
		BytesSent:     b.bytesSent.Load(),
		BytesReceived: b.bytesReceived.Load(),
		PacketsLost:   b.packetsLost.Load(),
		ErrorMessage:  errMsg,
	}
}

// Config returns the working stream format.
func (b *TCPBackend) Config() protocol.StreamConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

// reset prepares a fresh session: counters zeroed, stop channel armed.
func (b *TCPBackend) reset(cfg protocol.StreamConfig) {
	b.stopChan = make(chan struct{})
	b.bytesSent.Store(0)
	b.bytesReceived.Store(0)
	b.packetsLost.Store(0)

	b.sendMu.Lock()
	b.sequence = 0
	b.sendMu.Unlock()

	b.peerMu.Lock()
	b.peerAddress = ""
	b.peerPort = 0
	b.errMsg = ""
	b.peerMu.Unlock()

	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
}

func (b *TCPBackend) setState(s State) {
	b.state.Store(int32(s))
}

func (b *TCPBackend) setError(msg string) {
	b.peerMu.Lock()
	b.errMsg = msg
	b.peerMu.Unlock()
	b.setState(StateError)
	log.Printf("transport: %s", msg)
}

func (b *TCPBackend) setPeer(addr string, port int) {
	b.peerMu.Lock()
	b.peerAddress = addr
	b.peerPort = port
	b.peerMu.Unlock()
}

func (b *TCPBackend) closeSockets() {
	b.sendMu.Lock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.sendMu.Unlock()

	b.connMu.Lock()
	if b.listener != nil {
		b.listener.Close()
		b.listener = nil
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	b.connMu.Unlock()
}

// senderLoop connects, performs the handshake, and then parks until the
// endpoint stops. Audio writes happen on the caller's thread.
func (b *TCPBackend) senderLoop(ctx context.Context) {
	defer b.wg.Done()

	addr := net.JoinHostPort(b.targetHost, fmt.Sprintf("%d", b.port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", addr)
	if err != nil {
		if b.running.Load() {
			b.setError(fmt.Sprintf("failed to connect to %s: %v", addr, err))
		}
		return
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	b.sendMu.Lock()
	b.conn = conn
	b.sendMu.Unlock()

	b.setPeer(b.targetHost, b.port)
	b.setState(StateConnected)
	b.emitConnection(true)
	defer b.emitConnection(false)

	// The stream header is not counted in bytesSent.
	if _, err := conn.Write(protocol.EncodeStreamHeader(b.Config())); err != nil {
		b.setError(fmt.Sprintf("failed to send stream header: %v", err))
		return
	}

	b.setState(StateStreaming)

	<-b.stopChan
}

// acceptLoop owns the listening socket, serving one sender at a time.
func (b *TCPBackend) acceptLoop(ln net.Listener) {
	defer b.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !b.running.Load() {
				return
			}
			b.peerMu.Lock()
			b.errMsg = fmt.Sprintf("accept failed: %v", err)
			b.peerMu.Unlock()
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}

		if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			b.setPeer(addr.IP.String(), addr.Port)
		}

		b.connMu.Lock()
		b.client = conn
		b.connMu.Unlock()

		b.setState(StateConnected)
		b.emitConnection(true)

		b.serveClient(conn)

		b.emitConnection(false)
		conn.Close()

		b.connMu.Lock()
		b.client = nil
		b.connMu.Unlock()

		if b.running.Load() {
			b.setState(StateConnecting)
		}
	}
}

// serveClient runs the per-connection receive script: handshake, then
// chunks until the stream breaks or the endpoint stops.
func (b *TCPBackend) serveClient(conn net.Conn) {
	headerBuf := make([]byte, protocol.StreamHeaderSize)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		b.setError(fmt.Sprintf("failed to receive stream header: %v", err))
		return
	}

	hdr, err := protocol.DecodeStreamHeader(headerBuf)
	if err != nil {
		b.setError(fmt.Sprintf("invalid stream header: %v", err))
		return
	}
	if hdr.Channels == 0 {
		b.setError("invalid stream header: zero channels")
		return
	}

	b.cfgMu.Lock()
	b.cfg = hdr.Config()
	channels := int(b.cfg.Channels)
	b.cfgMu.Unlock()

	b.setState(StateStreaming)

	chunkBuf := make([]byte, protocol.ChunkHeaderSize)
	var payload []byte
	var samples []float32
	var expected uint32

	for b.running.Load() && State(b.state.Load()) == StateStreaming {
		if _, err := io.ReadFull(conn, chunkBuf); err != nil {
			if b.running.Load() {
				b.peerMu.Lock()
				b.errMsg = "connection lost"
				b.peerMu.Unlock()
				b.setState(StateDisconnected)
			}
			return
		}

		chunk, err := protocol.DecodeChunkHeader(chunkBuf)
		if err != nil {
			continue
		}

		// Keepalives consume a sequence number like any other chunk, so
		// gaps are accounted identically and idle links report zero loss.
		if chunk.Sequence != expected {
			b.packetsLost.Add(chunk.Sequence - expected)
		}
		expected = chunk.Sequence + 1

		if chunk.IsKeepalive() {
			b.bytesReceived.Add(protocol.ChunkHeaderSize)
			continue
		}

		if cap(payload) < int(chunk.Size) {
			payload = make([]byte, chunk.Size)
		}
		payload = payload[:chunk.Size]
		if _, err := io.ReadFull(conn, payload); err != nil {
			if b.running.Load() {
				b.setError(fmt.Sprintf("failed to receive audio data: %v", err))
			}
			return
		}

		b.bytesReceived.Add(protocol.ChunkHeaderSize + uint64(chunk.Size))

		numFloats := int(chunk.Size) / 4
		if cap(samples) < numFloats {
			samples = make([]float32, numFloats)
		}
		samples = samples[:numFloats]
		for i := 0; i < numFloats; i++ {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}

		b.emitAudio(samples, channels, numFloats/channels)
	}
}

// keepaliveLoop emits an empty chunk every interval while streaming.
func (b *TCPBackend) keepaliveLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
		}

		if State(b.state.Load()) != StateStreaming {
			continue
		}

		b.sendMu.Lock()
		if b.conn != nil {
			b.writeChunkLocked(nil)
		}
		b.sendMu.Unlock()
	}
}

// writeChunkLocked frames and writes one chunk. A nil payload is a
// keepalive. Caller holds sendMu and has checked conn.
func (b *TCPBackend) writeChunkLocked(payload []float32) bool {
	size := uint32(len(payload) * 4)

	need := protocol.ChunkHeaderSize + int(size)
	if cap(b.sendBuf) < need {
		b.sendBuf = make([]byte, need)
	}
	buf := b.sendBuf[:need]

	protocol.EncodeChunkHeader(buf, size, b.sequence)
	b.sequence++

	for i, s := range payload {
		binary.LittleEndian.PutUint32(buf[protocol.ChunkHeaderSize+i*4:], math.Float32bits(s))
	}

	if _, err := b.conn.Write(buf); err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.EOF) {
			b.setState(StateDisconnected)
		} else {
			b.setError(fmt.Sprintf("write failed: %v", err))
		}
		return false
	}

	b.bytesSent.Add(uint64(need))
	return true
}

// emitAudio invokes the audio-received callback. A panicking callback
// must not take the receive loop down with it.
func (b *TCPBackend) emitAudio(samples []float32, channels, numSamples int) {
	if b.audioCb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("transport: audio callback panic: %v", r)
		}
	}()
	b.audioCb(samples, channels, numSamples)
}

func (b *TCPBackend) emitConnection(connected bool) {
	if b.connCb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("transport: connection callback panic: %v", r)
		}
	}()
	b.connCb(connected)
}
