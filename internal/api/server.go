// ABOUTME: HTTP control surface reporting pipeline status and lifecycle verbs
// ABOUTME: Passive reporter over the transport endpoint plus start/stop dispatch
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/acau-audio/acau-go/internal/bridge"
	"github.com/acau-audio/acau-go/internal/engine"
	"github.com/acau-audio/acau-go/internal/transport"
)

// Options wires the server to the pipeline it reports on.
type Options struct {
	Mode      string
	SessionID string
	Backend   transport.Backend

	// Device returns the open device name, empty when none.
	Device func() string
	// Devices enumerates audio devices for GET /devices.
	Devices func() ([]engine.DeviceInfo, error)
	// StartStream and StopStream dispatch the lifecycle verbs.
	StartStream func() error
	StopStream  func()
	// BridgeStats is nil on the sender.
	BridgeStats func() bridge.Stats
}

// Server is the HTTP control API.
type Server struct {
	opts    Options
	mux     *http.ServeMux
	httpSrv *http.Server

	verbMu sync.Mutex // start/stop are exclusive, not reentrant

	stopChan chan struct{}
	stopOnce sync.Once
}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		opts:     opts,
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}

	route := func(method, path string, h http.HandlerFunc) {
		s.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
				return
			}
			h(w, r)
		})
	}
	route(http.MethodGet, "/status", s.handleStatus)
	route(http.MethodGet, "/devices", s.handleDevices)
	route(http.MethodGet, "/transports", s.handleTransports)
	route(http.MethodPut, "/transport", s.handleTransportSwitch)
	route(http.MethodPost, "/stream/start", s.handleStreamStart)
	route(http.MethodPost, "/stream/stop", s.handleStreamStop)
	route(http.MethodGet, "/events", s.handleEvents)

	return s
}

// Handler returns the full handler chain, CORS included.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// Start binds the API port and serves in the background.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind API port %d: %w", port, err)
	}

	s.httpSrv = &http.Server{Handler: s.Handler()}
	go func() {
		if err := s.httpSrv.Serve(ln); err != http.ErrServerClosed {
			log.Printf("api: server error: %v", err)
		}
	}()

	log.Printf("api: listening on :%d", port)
	return nil
}

// Stop shuts the server down, dropping any open event streams.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type streamInfo struct {
	SampleRate uint32 `json:"sampleRate"`
	Channels   uint16 `json:"channels"`
	BufferSize uint32 `json:"bufferSize"`
}

type transportInfo struct {
	Name          string `json:"name"`
	PeerAddress   string `json:"peerAddress"`
	PeerPort      int    `json:"peerPort"`
	BytesSent     uint64 `json:"bytesSent"`
	BytesReceived uint64 `json:"bytesReceived"`
	PacketsLost   uint32 `json:"packetsLost"`
}

type bufferInfo struct {
	OverflowSamples uint64 `json:"overflowSamples"`
	UnderrunSamples uint64 `json:"underrunSamples"`
}

type statusResponse struct {
	Mode      string        `json:"mode"`
	Session   string        `json:"session"`
	State     string        `json:"state"`
	Device    string        `json:"device"`
	Stream    streamInfo    `json:"stream"`
	Transport transportInfo `json:"transport"`
	Buffer    *bufferInfo   `json:"buffer,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) statusSnapshot() statusResponse {
	st := s.opts.Backend.Status()
	cfg := s.opts.Backend.Config()

	resp := statusResponse{
		Mode:    s.opts.Mode,
		Session: s.opts.SessionID,
		State:   st.State.String(),
		Stream: streamInfo{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			BufferSize: cfg.BufferSize,
		},
		Transport: transportInfo{
			Name:          s.opts.Backend.Name(),
			PeerAddress:   st.PeerAddress,
			PeerPort:      st.PeerPort,
			BytesSent:     st.BytesSent,
			BytesReceived: st.BytesReceived,
			PacketsLost:   st.PacketsLost,
		},
		Error: st.ErrorMessage,
	}

	if s.opts.Device != nil {
		resp.Device = s.opts.Device()
	}
	if s.opts.BridgeStats != nil {
		stats := s.opts.BridgeStats()
		resp.Buffer = &bufferInfo{
			OverflowSamples: stats.OverflowSamples,
			UnderrunSamples: stats.UnderrunSamples,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusSnapshot())
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.opts.Devices == nil {
		writeJSON(w, http.StatusOK, []engine.DeviceInfo{})
		return
	}
	devices, err := s.opts.Devices()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleTransports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]interface{}{
		{
			"name":        s.opts.Backend.Name(),
			"description": s.opts.Backend.Description(),
			"active":      true,
		},
	})
}

func (s *Server) handleTransportSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name != s.opts.Backend.Name() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown transport: %s", req.Name)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "transport": req.Name})
}

func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.StartStream == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not supported"})
		return
	}

	s.verbMu.Lock()
	err := s.opts.StartStream()
	s.verbMu.Unlock()

	if err == transport.ErrAlreadyRunning {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "stream already running"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	if s.opts.StopStream == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "not supported"})
		return
	}

	s.verbMu.Lock()
	s.opts.StopStream()
	s.verbMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
