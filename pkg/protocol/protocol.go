// ABOUTME: Binary encoding and decoding of ACAU protocol headers
// ABOUTME: Stream header carries the negotiated format, chunk headers frame PCM payloads
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// Version is the protocol version written into every stream header.
	Version = 1

	// StreamHeaderSize is the on-wire size of the one-time stream header.
	StreamHeaderSize = 20

	// ChunkHeaderSize is the on-wire size of the per-chunk header.
	ChunkHeaderSize = 8

	// KeepaliveInterval is how often a zero-sized chunk is emitted while streaming.
	KeepaliveInterval = 2000 * time.Millisecond
)

// Magic identifies an ACAU stream. It is the first four bytes on the wire.
var Magic = [4]byte{'A', 'C', 'A', 'U'}

// ErrBadMagic is returned when a stream header does not begin with Magic.
var ErrBadMagic = errors.New("invalid stream header magic")

// StreamConfig describes the audio format of a stream. It is immutable
// once the handshake completes.
type StreamConfig struct {
	SampleRate    uint32 // Hz
	Channels      uint16
	BitsPerSample uint16 // only 32 (IEEE-754 binary32) is defined
	BufferSize    uint32 // device block size in frames, advisory
}

// DefaultStreamConfig returns the format used when nothing is configured.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate:    48000,
		Channels:      2,
		BitsPerSample: 32,
		BufferSize:    512,
	}
}

// BytesPerFrame returns the wire size of one frame (one sample per channel).
func (c StreamConfig) BytesPerFrame() int {
	return int(c.Channels) * 4
}

// StreamHeader is the decoded form of the 20-byte handshake header.
type StreamHeader struct {
	Version       uint16
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	BufferSize    uint32
}

// Config extracts the stream format carried by the header.
func (h StreamHeader) Config() StreamConfig {
	return StreamConfig{
		SampleRate:    h.SampleRate,
		Channels:      h.Channels,
		BitsPerSample: h.BitsPerSample,
		BufferSize:    h.BufferSize,
	}
}

// ChunkHeader prefixes every chunk. Size is the payload length in bytes;
// zero marks a keepalive. Sequence increases by one per chunk sent,
// keepalives included.
type ChunkHeader struct {
	Size     uint32
	Sequence uint32
}

// IsKeepalive reports whether the chunk carries no audio payload.
func (h ChunkHeader) IsKeepalive() bool {
	return h.Size == 0
}

// EncodeStreamHeader serializes cfg into a 20-byte stream header.
// The version is always Version and the reserved field is zero.
func EncodeStreamHeader(cfg StreamConfig) []byte {
	buf := make([]byte, StreamHeaderSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], Version)
	binary.LittleEndian.PutUint32(buf[6:10], cfg.SampleRate)
	binary.LittleEndian.PutUint16(buf[10:12], cfg.Channels)
	binary.LittleEndian.PutUint16(buf[12:14], cfg.BitsPerSample)
	binary.LittleEndian.PutUint32(buf[14:18], cfg.BufferSize)
	// buf[18:20] reserved, zero
	return buf
}

// DecodeStreamHeader parses a 20-byte stream header. It fails on short
// input or when the magic does not match. The version is parsed but not
// validated.
func DecodeStreamHeader(data []byte) (StreamHeader, error) {
	var h StreamHeader
	if len(data) < StreamHeaderSize {
		return h, fmt.Errorf("stream header too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return h, ErrBadMagic
	}

	h.Version = binary.LittleEndian.Uint16(data[4:6])
	h.SampleRate = binary.LittleEndian.Uint32(data[6:10])
	h.Channels = binary.LittleEndian.Uint16(data[10:12])
	h.BitsPerSample = binary.LittleEndian.Uint16(data[12:14])
	h.BufferSize = binary.LittleEndian.Uint32(data[14:18])

	return h, nil
}

// EncodeChunkHeader serializes a chunk header into dst, which must hold
// at least ChunkHeaderSize bytes. No allocation happens per chunk; the
// caller provides the buffer.
func EncodeChunkHeader(dst []byte, size, sequence uint32) {
	binary.LittleEndian.PutUint32(dst[0:4], size)
	binary.LittleEndian.PutUint32(dst[4:8], sequence)
}

// DecodeChunkHeader parses an 8-byte chunk header.
func DecodeChunkHeader(data []byte) (ChunkHeader, error) {
	var h ChunkHeader
	if len(data) < ChunkHeaderSize {
		return h, fmt.Errorf("chunk header too short: %d bytes", len(data))
	}
	h.Size = binary.LittleEndian.Uint32(data[0:4])
	h.Sequence = binary.LittleEndian.Uint32(data[4:8])
	return h, nil
}
