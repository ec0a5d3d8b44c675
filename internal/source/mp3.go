// ABOUTME: MP3 file source decoded to float32 PCM
// ABOUTME: Loops the file at EOF so the stream never runs dry
package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3 streams a local MP3 file as float32 PCM. The decoder outputs
// 16-bit little-endian stereo at the file's native rate.
type MP3 struct {
	file    *os.File
	decoder *mp3.Decoder
	raw     []byte
}

// NewMP3 opens and starts decoding an MP3 file.
func NewMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", path, decoder.SampleRate())

	return &MP3{file: f, decoder: decoder}, nil
}

// Fill decodes numSamples stereo frames into planar buffers, looping
// back to the start of the file on EOF.
func (s *MP3) Fill(channelData [][]float32, numChannels, numSamples int) (int, error) {
	// Two int16 samples per frame, two bytes each.
	need := numSamples * 4
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	buf := s.raw[:need]

	n, err := io.ReadFull(s.decoder, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		if rerr := s.rewind(); rerr != nil {
			return n / 4, rerr
		}
		err = nil
	}
	if err != nil {
		return 0, err
	}

	frames := n / 4
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		right := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))

		l := float32(left) / 32768.0
		r := float32(right) / 32768.0

		channelData[0][i] = l
		if numChannels > 1 {
			channelData[1][i] = r
		}
		// Additional output channels stay silent; the decoder is stereo.
		for ch := 2; ch < numChannels; ch++ {
			channelData[ch][i] = 0
		}
	}

	return frames, nil
}

// rewind seeks back to the start and rebuilds the decoder to loop.
func (s *MP3) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new decoder: %w", err)
	}
	s.decoder = decoder
	return nil
}

func (s *MP3) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3) Channels() int   { return 2 }
func (s *MP3) Close() error    { return s.file.Close() }
