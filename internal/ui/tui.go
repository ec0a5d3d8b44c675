// ABOUTME: TUI program lifecycle
// ABOUTME: Creates the bubbletea program and returns it for Send
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run creates the TUI program without starting it. The caller pushes
// StatusMsg updates via the returned program's Send and runs the program
// loop itself.
func Run() *tea.Program {
	return tea.NewProgram(NewModel(), tea.WithAltScreen())
}
