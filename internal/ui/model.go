// ABOUTME: Bubbletea model for the endpoint status TUI
// ABOUTME: Renders the transport snapshot and buffer pressure counters
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/acau-audio/acau-go/internal/transport"
)

// StatusMsg carries a pipeline snapshot into the TUI.
type StatusMsg struct {
	Mode       string
	Status     transport.Status
	SampleRate uint32
	Channels   uint16
	BufferSize uint32

	// Receiver-side jitter buffer pressure.
	OverflowSamples uint64
	UnderrunSamples uint64
	BufferedSamples int
}

// Model represents the TUI state.
type Model struct {
	mode       string
	state      string
	peer       string
	sampleRate uint32
	channels   uint16
	bufferSize uint32

	bytesSent     uint64
	bytesReceived uint64
	packetsLost   uint32

	overflow uint64
	underrun uint64
	buffered int

	errMsg string

	width  int
	height int
}

// NewModel returns the initial TUI state.
func NewModel() Model {
	return Model{
		state: "disconnected",
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m = m.applyStatus(msg)
	}

	return m, nil
}

// applyStatus folds a snapshot into the model.
func (m Model) applyStatus(msg StatusMsg) Model {
	m.mode = msg.Mode
	m.state = msg.Status.State.String()
	if msg.Status.PeerAddress != "" {
		m.peer = fmt.Sprintf("%s:%d", msg.Status.PeerAddress, msg.Status.PeerPort)
	} else {
		m.peer = "-"
	}
	m.sampleRate = msg.SampleRate
	m.channels = msg.Channels
	m.bufferSize = msg.BufferSize
	m.bytesSent = msg.Status.BytesSent
	m.bytesReceived = msg.Status.BytesReceived
	m.packetsLost = msg.Status.PacketsLost
	m.overflow = msg.OverflowSamples
	m.underrun = msg.UnderrunSamples
	m.buffered = msg.BufferedSamples
	m.errMsg = msg.Status.ErrorMessage
	return m
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := fmt.Sprintf(`┌─ ACAU %s ──────────────────────────────────────┐
│ State:  %-44s │
│ Peer:   %-44s │
│ Stream: %-44s │
│ Sent:   %-44s │
│ Recv:   %-44s │
│ Lost:   %-44d │
`,
		m.mode,
		m.state,
		m.peer,
		fmt.Sprintf("%d Hz, %d ch, %d frames", m.sampleRate, m.channels, m.bufferSize),
		formatBytes(m.bytesSent),
		formatBytes(m.bytesReceived),
		m.packetsLost,
	)

	if m.mode == "receiver" {
		s += fmt.Sprintf("│ Buffer: %-44s │\n",
			fmt.Sprintf("%d queued, %d overflow, %d underrun", m.buffered, m.overflow, m.underrun))
	}

	if m.errMsg != "" {
		s += fmt.Sprintf("│ Error:  %-44s │\n", truncate(m.errMsg, 44))
	}

	s += `├──────────────────────────────────────────────────────┤
│ q: quit                                              │
└──────────────────────────────────────────────────────┘
`
	return s
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
