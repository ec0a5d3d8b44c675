// ABOUTME: ACAU wire protocol package
// ABOUTME: Defines the stream and chunk header binary layouts
// Package protocol implements the ACAU wire protocol headers.
//
// A connection carries one 20-byte stream header followed by a
// sequence of chunks, each an 8-byte chunk header plus an optional
// float32 PCM payload. All integer fields are little-endian.
//
// Example:
//
//	data := protocol.EncodeStreamHeader(cfg)
//	hdr, err := protocol.DecodeStreamHeader(data)
package protocol
