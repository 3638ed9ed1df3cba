// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels carrying user input back
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Controls carries user input from the TUI to the application
type Controls struct {
	Volume chan float64
	Mute   chan bool
	Retry  chan struct{}
	Quit   chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Volume: make(chan float64, 10),
		Mute:   make(chan bool, 10),
		Retry:  make(chan struct{}, 1),
		Quit:   make(chan struct{}, 1),
	}
}

func (c *Controls) setVolume(v float64) {
	if c == nil {
		return
	}
	select {
	case c.Volume <- v:
	default:
	}
}

func (c *Controls) setMuted(muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Mute <- muted:
	default:
	}
}

func (c *Controls) retry() {
	if c == nil {
		return
	}
	select {
	case c.Retry <- struct{}{}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume float64, muted bool) Model {
	return Model{
		volume:   volume,
		muted:    muted,
		controls: controls,
	}
}

// Run creates the TUI program
func Run(controls *Controls, volume float64, muted bool) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume, muted), tea.WithAltScreen())
}
