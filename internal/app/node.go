// ABOUTME: Endpoint orchestration wiring config, engine, bridge, and transport
// ABOUTME: Owns the session lifecycle for both sender and receiver roles
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/acau-audio/acau-go/internal/api"
	"github.com/acau-audio/acau-go/internal/bridge"
	"github.com/acau-audio/acau-go/internal/config"
	"github.com/acau-audio/acau-go/internal/discovery"
	"github.com/acau-audio/acau-go/internal/engine"
	"github.com/acau-audio/acau-go/internal/source"
	"github.com/acau-audio/acau-go/internal/transport"
	"github.com/acau-audio/acau-go/internal/ui"
	"github.com/acau-audio/acau-go/pkg/protocol"
)

// discoverTimeout bounds how long a sender waits for a receiver to
// appear on the network before giving up.
const discoverTimeout = 30 * time.Second

// Node is one running endpoint: the transport plus the audio path and
// control surface around it.
type Node struct {
	cfg       config.Config
	sessionID string

	backend *transport.TCPBackend
	eng     *engine.Engine
	recv    *bridge.Receiver
	oto     *engine.OtoOutput
	apiSrv  *api.Server
	disc    *discovery.Manager

	// Resolved sender target, after discovery if it ran.
	targetHost string
	targetPort int

	pumpCancel context.CancelFunc
	src        source.Source

	tui       *tea.Program
	tuiCancel context.CancelFunc

	engineUp bool
}

// New creates a node for the given configuration.
func New(cfg config.Config) *Node {
	return &Node{
		cfg:       cfg,
		sessionID: uuid.New().String(),
		backend:   transport.NewTCPBackend(),
	}
}

// SessionID returns the node's session identifier.
func (n *Node) SessionID() string { return n.sessionID }

// Backend exposes the transport endpoint, mainly for status reporting.
func (n *Node) Backend() transport.Backend { return n.backend }

// Start brings the whole pipeline up. On return the endpoint is
// connecting and the control API is serving.
func (n *Node) Start() error {
	log.Printf("node: starting %s session %s", n.cfg.Mode, n.sessionID)

	streamCfg := n.cfg.StreamConfig()

	var err error
	switch n.cfg.Mode {
	case config.ModeReceiver:
		err = n.startReceiver(streamCfg)
	case config.ModeSender:
		err = n.startSender(streamCfg)
	default:
		err = fmt.Errorf("unknown mode: %s", n.cfg.Mode)
	}
	if err != nil {
		n.Stop()
		return err
	}

	if n.cfg.APIPort > 0 {
		n.apiSrv = api.New(n.apiOptions())
		if err := n.apiSrv.Start(n.cfg.APIPort); err != nil {
			n.Stop()
			return err
		}
	}

	return nil
}

// Stop tears the node down in reverse dependency order.
func (n *Node) Stop() {
	if n.tuiCancel != nil {
		n.tuiCancel()
		n.tuiCancel = nil
	}
	if n.apiSrv != nil {
		n.apiSrv.Stop()
		n.apiSrv = nil
	}
	if n.pumpCancel != nil {
		n.pumpCancel()
		n.pumpCancel = nil
	}

	n.backend.Stop()

	if n.src != nil {
		n.src.Close()
		n.src = nil
	}
	if n.oto != nil {
		n.oto.Close()
		n.oto = nil
	}
	if n.eng != nil {
		n.eng.Close()
		if n.engineUp {
			n.eng.Terminate()
			n.engineUp = false
		}
		n.eng = nil
	}
	if n.disc != nil {
		n.disc.Stop()
		n.disc = nil
	}

	log.Printf("node: stopped")
}

func (n *Node) startReceiver(streamCfg protocol.StreamConfig) error {
	n.recv = bridge.NewReceiver(streamCfg)
	n.backend.SetAudioReceivedCallback(n.recv.OnAudioReceived)
	n.backend.SetConnectionCallback(func(connected bool) {
		if connected {
			log.Printf("node: sender attached")
		} else {
			log.Printf("node: sender detached, buffer stats: %+v", n.recv.Stats())
		}
	})

	switch n.cfg.OutputBackend {
	case "oto":
		n.oto = engine.NewOtoOutput()
		if err := n.oto.Open(streamCfg, n.recv.ReadInterleaved); err != nil {
			return err
		}
	default:
		n.eng = engine.New(streamCfg)
		if err := n.eng.Initialize(); err != nil {
			return err
		}
		n.engineUp = true
		n.eng.SetPlaybackCallback(n.recv.Playback)
		if err := n.eng.OpenOutput(n.cfg.Device); err != nil {
			return err
		}
	}

	if !n.cfg.NoMDNS {
		n.disc = discovery.NewManager(fmt.Sprintf("acau-%s", n.sessionID[:8]), n.cfg.Port)
		if err := n.disc.Advertise(); err != nil {
			log.Printf("node: mdns advertisement failed: %v", err)
		}
	}

	return n.backend.StartReceiver(n.cfg.Port, streamCfg)
}

func (n *Node) startSender(streamCfg protocol.StreamConfig) error {
	host, port := n.cfg.Target, n.cfg.Port
	if host == "" {
		peer, err := n.discoverReceiver()
		if err != nil {
			return err
		}
		host, port = peer.Host, peer.Port
	}
	n.targetHost, n.targetPort = host, port

	if n.cfg.TestTone || n.cfg.AudioFile != "" {
		path := ""
		if !n.cfg.TestTone {
			path = n.cfg.AudioFile
		}
		src, err := source.New(path, n.cfg.SampleRate, n.cfg.Channels, float64(n.cfg.ToneFrequency))
		if err != nil {
			return err
		}
		n.src = src

		// The stream adopts the source's native format.
		streamCfg.SampleRate = uint32(src.SampleRate())
		streamCfg.Channels = uint16(src.Channels())

		pump := source.NewPump(src, func(data [][]float32, channels, samples int) {
			n.backend.SendAudio(data, channels, samples)
		}, n.cfg.BufferSize)

		ctx, cancel := context.WithCancel(context.Background())
		n.pumpCancel = cancel
		go pump.Run(ctx)
	} else {
		n.eng = engine.New(streamCfg)
		if err := n.eng.Initialize(); err != nil {
			return err
		}
		n.engineUp = true
		n.eng.SetCaptureCallback(func(data [][]float32, channels, samples int) {
			n.backend.SendAudio(data, channels, samples)
		})
		if err := n.eng.OpenInput(n.cfg.Device); err != nil {
			return err
		}
	}

	return n.backend.StartSender(host, port, streamCfg)
}

// discoverReceiver browses mDNS and returns the first receiver found.
func (n *Node) discoverReceiver() (discovery.Peer, error) {
	log.Printf("node: no target configured, browsing for receivers")

	n.disc = discovery.NewManager(fmt.Sprintf("acau-%s", n.sessionID[:8]), n.cfg.Port)
	n.disc.Browse()

	select {
	case peer := <-n.disc.Peers():
		return peer, nil
	case <-time.After(discoverTimeout):
		return discovery.Peer{}, fmt.Errorf("no receiver discovered within %s", discoverTimeout)
	}
}

// apiOptions builds the control surface wiring.
func (n *Node) apiOptions() api.Options {
	opts := api.Options{
		Mode:      string(n.cfg.Mode),
		SessionID: n.sessionID,
		Backend:   n.backend,
		Device: func() string {
			if n.eng != nil {
				return n.eng.DeviceName()
			}
			return ""
		},
		StartStream: n.restartTransport,
		StopStream:  n.backend.Stop,
	}
	if n.engineUp {
		opts.Devices = func() ([]engine.DeviceInfo, error) { return engine.ListDevices() }
	}
	if n.recv != nil {
		opts.BridgeStats = n.recv.Stats
	}
	return opts
}

// restartTransport re-issues the start verb with the session's
// parameters. The audio path stays wired across transport restarts.
func (n *Node) restartTransport() error {
	streamCfg := n.backend.Config()
	if n.cfg.Mode == config.ModeReceiver {
		return n.backend.StartReceiver(n.cfg.Port, streamCfg)
	}
	return n.backend.StartSender(n.targetHost, n.targetPort, streamCfg)
}

// RunTUI starts the status TUI and keeps it fed with snapshots until
// the node stops. Blocks until the user quits.
func (n *Node) RunTUI() error {
	n.tui = ui.Run()

	ctx, cancel := context.WithCancel(context.Background())
	n.tuiCancel = cancel

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.tui.Quit()
				return
			case <-ticker.C:
				n.tui.Send(n.statusMsg())
			}
		}
	}()

	_, err := n.tui.Run()
	return err
}

func (n *Node) statusMsg() ui.StatusMsg {
	cfg := n.backend.Config()
	msg := ui.StatusMsg{
		Mode:       string(n.cfg.Mode),
		Status:     n.backend.Status(),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BufferSize: cfg.BufferSize,
	}
	if n.recv != nil {
		stats := n.recv.Stats()
		msg.OverflowSamples = stats.OverflowSamples
		msg.UnderrunSamples = stats.UnderrunSamples
		msg.BufferedSamples = n.recv.Buffered()
	}
	return msg
}
