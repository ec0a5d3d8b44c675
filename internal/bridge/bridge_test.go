// ABOUTME: Tests for the audio bridge
// ABOUTME: Covers interleaving, underrun zero-fill, and overflow accounting
package bridge

import (
	"testing"

	"github.com/acau-audio/acau-go/pkg/protocol"
)

func TestInterleaveDeinterleave(t *testing.T) {
	left := []float32{1, 2, 3}
	right := []float32{4, 5, 6}

	interleaved := make([]float32, 6)
	Interleave(interleaved, [][]float32{left, right}, 2, 3)

	want := []float32{1, 4, 2, 5, 3, 6}
	for i, w := range want {
		if interleaved[i] != w {
			t.Errorf("interleaved[%d]: expected %v, got %v", i, w, interleaved[i])
		}
	}

	outL := make([]float32, 3)
	outR := make([]float32, 3)
	Deinterleave([][]float32{outL, outR}, interleaved, 2, 3)

	for i := range left {
		if outL[i] != left[i] || outR[i] != right[i] {
			t.Errorf("frame %d: expected (%v,%v), got (%v,%v)", i, left[i], right[i], outL[i], outR[i])
		}
	}
}

func TestPlaybackDeliversReceivedAudio(t *testing.T) {
	cfg := protocol.StreamConfig{SampleRate: 48000, Channels: 2, BitsPerSample: 32, BufferSize: 4}
	r := NewReceiver(cfg)

	r.OnAudioReceived([]float32{1, 4, 2, 5, 3, 6}, 2, 3)

	outL := make([]float32, 3)
	outR := make([]float32, 3)
	if !r.Playback([][]float32{outL, outR}, 2, 3) {
		t.Fatal("expected Playback to report audio delivered")
	}

	wantL := []float32{1, 2, 3}
	wantR := []float32{4, 5, 6}
	for i := range wantL {
		if outL[i] != wantL[i] || outR[i] != wantR[i] {
			t.Errorf("frame %d: expected (%v,%v), got (%v,%v)", i, wantL[i], wantR[i], outL[i], outR[i])
		}
	}
}

// An empty ring yields a silence-filled block and a false return, with
// the shortfall counted as underrun.
func TestPlaybackUnderrun(t *testing.T) {
	cfg := protocol.StreamConfig{SampleRate: 48000, Channels: 2, BitsPerSample: 32, BufferSize: 512}
	r := NewReceiver(cfg)

	outL := make([]float32, 512)
	outR := make([]float32, 512)
	for i := range outL {
		outL[i] = 99
		outR[i] = 99
	}

	if r.Playback([][]float32{outL, outR}, 2, 512) {
		t.Error("expected Playback to report no data")
	}

	for i := range outL {
		if outL[i] != 0 || outR[i] != 0 {
			t.Fatalf("frame %d not zero-filled: (%v,%v)", i, outL[i], outR[i])
		}
	}

	if got := r.Stats().UnderrunSamples; got != 1024 {
		t.Errorf("expected 1024 underrun samples, got %d", got)
	}
}

func TestPartialUnderrunZeroFillsTail(t *testing.T) {
	cfg := protocol.StreamConfig{SampleRate: 48000, Channels: 1, BitsPerSample: 32, BufferSize: 4}
	r := NewReceiver(cfg)

	r.OnAudioReceived([]float32{7, 8}, 1, 2)

	out := make([]float32, 4)
	for i := range out {
		out[i] = 99
	}
	if !r.Playback([][]float32{out}, 1, 4) {
		t.Error("expected Playback to report partial data delivered")
	}

	want := []float32{7, 8, 0, 0}
	for i, w := range want {
		if out[i] != w {
			t.Errorf("out[%d]: expected %v, got %v", i, w, out[i])
		}
	}
}

func TestOverflowDropsSilently(t *testing.T) {
	// A deliberately tiny ring: one second of 4 Hz mono holds 3 samples.
	cfg := protocol.StreamConfig{SampleRate: 4, Channels: 1, BitsPerSample: 32, BufferSize: 2}
	r := NewReceiver(cfg)

	r.OnAudioReceived([]float32{1, 2, 3, 4, 5}, 1, 5)

	if got := r.Stats().OverflowSamples; got != 2 {
		t.Errorf("expected 2 overflow samples, got %d", got)
	}
	if got := r.Buffered(); got != 3 {
		t.Errorf("expected 3 buffered samples, got %d", got)
	}

	// What was kept is the prefix, in order.
	out := make([]float32, 3)
	r.ReadInterleaved(out)
	for i, w := range []float32{1, 2, 3} {
		if out[i] != w {
			t.Errorf("out[%d]: expected %v, got %v", i, w, out[i])
		}
	}
}
