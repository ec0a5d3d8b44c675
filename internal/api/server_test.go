// ABOUTME: Tests for the HTTP control surface
// ABOUTME: Uses a stub transport backend behind httptest
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/acau-audio/acau-go/internal/bridge"
	"github.com/acau-audio/acau-go/internal/engine"
	"github.com/acau-audio/acau-go/internal/transport"
	"github.com/acau-audio/acau-go/pkg/protocol"
	"github.com/gorilla/websocket"
)

// stubBackend is a canned transport.Backend for handler tests.
type stubBackend struct {
	status  transport.Status
	cfg     protocol.StreamConfig
	started int
	stopped int
	busy    bool
}

func (s *stubBackend) Name() string        { return "tcp-pcm" }
func (s *stubBackend) Description() string { return "TCP with raw PCM audio" }
func (s *stubBackend) StartSender(host string, port int, cfg protocol.StreamConfig) error {
	return nil
}
func (s *stubBackend) StartReceiver(port int, cfg protocol.StreamConfig) error { return nil }
func (s *stubBackend) Stop()                                                   {}
func (s *stubBackend) SendAudio(channelData [][]float32, numChannels, numSamples int) bool {
	return false
}
func (s *stubBackend) Status() transport.Status                             { return s.status }
func (s *stubBackend) Config() protocol.StreamConfig                        { return s.cfg }
func (s *stubBackend) SetAudioReceivedCallback(transport.AudioReceivedFunc) {}
func (s *stubBackend) SetConnectionCallback(transport.ConnectionFunc)       {}

func newTestServer(t *testing.T, backend *stubBackend) (*Server, *httptest.Server) {
	t.Helper()

	srv := New(Options{
		Mode:      "receiver",
		SessionID: "test-session",
		Backend:   backend,
		Device:    func() string { return "Loopback Monitor" },
		Devices: func() ([]engine.DeviceInfo, error) {
			return []engine.DeviceInfo{{Name: "Loopback Monitor", MaxOutputChannels: 2}}, nil
		},
		StartStream: func() error {
			if backend.busy {
				return transport.ErrAlreadyRunning
			}
			backend.started++
			return nil
		},
		StopStream:  func() { backend.stopped++ },
		BridgeStats: func() bridge.Stats { return bridge.Stats{OverflowSamples: 7} },
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Stop)
	return srv, ts
}

func TestStatusEndpoint(t *testing.T) {
	backend := &stubBackend{
		status: transport.Status{
			State:         transport.StateStreaming,
			PeerAddress:   "192.168.1.20",
			PeerPort:      9876,
			BytesSent:     0,
			BytesReceived: 410400,
			PacketsLost:   0,
		},
		cfg: protocol.StreamConfig{SampleRate: 48000, Channels: 2, BitsPerSample: 32, BufferSize: 512},
	}
	_, ts := newTestServer(t, backend)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}

	if body.State != "streaming" {
		t.Errorf("expected state streaming, got %s", body.State)
	}
	if body.Mode != "receiver" || body.Session != "test-session" {
		t.Errorf("unexpected mode/session: %s/%s", body.Mode, body.Session)
	}
	if body.Transport.PeerAddress != "192.168.1.20" || body.Transport.BytesReceived != 410400 {
		t.Errorf("unexpected transport info: %+v", body.Transport)
	}
	if body.Stream.SampleRate != 48000 || body.Stream.Channels != 2 {
		t.Errorf("unexpected stream info: %+v", body.Stream)
	}
	if body.Buffer == nil || body.Buffer.OverflowSamples != 7 {
		t.Errorf("expected buffer stats with 7 overflow samples, got %+v", body.Buffer)
	}
}

func TestDevicesEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubBackend{})

	resp, err := http.Get(ts.URL + "/devices")
	if err != nil {
		t.Fatalf("GET /devices failed: %v", err)
	}
	defer resp.Body.Close()

	var devices []engine.DeviceInfo
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "Loopback Monitor" {
		t.Errorf("unexpected devices: %+v", devices)
	}
}

func TestTransportsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubBackend{})

	resp, err := http.Get(ts.URL + "/transports")
	if err != nil {
		t.Fatalf("GET /transports failed: %v", err)
	}
	defer resp.Body.Close()

	var transports []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&transports); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(transports) != 1 || transports[0]["name"] != "tcp-pcm" {
		t.Errorf("unexpected transports: %+v", transports)
	}
}

func TestTransportSwitch(t *testing.T) {
	_, ts := newTestServer(t, &stubBackend{})

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/transport", strings.NewReader(`{"name":"tcp-pcm"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /transport failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for known transport, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/transport", strings.NewReader(`{"name":"udp-rtp"}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /transport failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown transport, got %d", resp.StatusCode)
	}
}

func TestStreamStartStop(t *testing.T) {
	backend := &stubBackend{}
	_, ts := newTestServer(t, backend)

	resp, err := http.Post(ts.URL+"/stream/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /stream/start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || backend.started != 1 {
		t.Errorf("expected start dispatched, got code %d starts %d", resp.StatusCode, backend.started)
	}

	resp, err = http.Post(ts.URL+"/stream/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /stream/stop failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || backend.stopped != 1 {
		t.Errorf("expected stop dispatched, got code %d stops %d", resp.StatusCode, backend.stopped)
	}
}

func TestStreamStartConflict(t *testing.T) {
	backend := &stubBackend{busy: true}
	_, ts := newTestServer(t, backend)

	resp, err := http.Post(ts.URL+"/stream/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /stream/start failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 when already running, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, &stubBackend{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/status", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS origin *, got %q", got)
	}
}

func TestEventsStream(t *testing.T) {
	backend := &stubBackend{
		status: transport.Status{State: transport.StateConnecting},
		cfg:    protocol.DefaultStreamConfig(),
	}
	_, ts := newTestServer(t, backend)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	var snap statusResponse
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("failed to read first snapshot: %v", err)
	}
	if snap.State != "connecting" {
		t.Errorf("expected state connecting, got %s", snap.State)
	}
}

func TestBytesBody(t *testing.T) {
	// Malformed JSON on the transport switch is rejected.
	_, ts := newTestServer(t, &stubBackend{})

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/transport", bytes.NewReader([]byte("{not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /transport failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}
