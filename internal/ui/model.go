// ABOUTME: Bubbletea model for the participant TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/voice"
)

// volumeStep is the change per arrow key press
const volumeStep = 0.05

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	sessionID  string

	// Microphone
	mic        string
	nativeRate int
	muted      bool
	level      float64

	// Narrator
	narrator voice.NarratorState
	playing  bool
	volume   float64
	speaker  string
	line     string

	// Stats
	capture  voice.CaptureStats
	playback voice.PlaybackStats

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderMic()
	s += m.renderNarrator()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders connection status
func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = fmt.Sprintf("Connected to %s", m.serverName)
	}

	return fmt.Sprintf(`┌─ Voicebridge ────────────────────────────────────────┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 45))
}

// renderMic renders microphone state and input level
func (m Model) renderMic() string {
	state := m.mic
	if state == "" {
		state = "off"
	}
	if m.muted && state == "live" {
		state = "muted"
	}

	rate := ""
	if m.nativeRate > 0 {
		rate = fmt.Sprintf("%dHz -> %dHz", m.nativeRate, audio.CaptureRate)
	}

	db := audio.LevelDB(m.level)
	levelBar := renderBar(int(db)+96, 96, 10)

	return fmt.Sprintf("│ Mic:    %-12s %-32s │\n"+
		"│ Level:  [%s] %4.0f dBFS%-21s │\n",
		state, rate, levelBar, db, "")
}

// renderNarrator renders narrator state, volume and the latest line
func (m Model) renderNarrator() string {
	playing := ""
	if m.playing {
		playing = " (playing)"
	}

	pct := int(math.Round(m.volume * 100))
	volumeBar := renderBar(pct, 100, 10)

	s := "│                                                      │\n"
	s += fmt.Sprintf("│ Narrator: %-42s │\n", m.narrator.String()+playing)
	s += fmt.Sprintf("│ Volume: [%s] %3d%%%-29s │\n", volumeBar, pct, "")
	if m.line != "" {
		line := m.line
		if m.speaker != "" {
			line = m.speaker + ": " + line
		}
		s += fmt.Sprintf("│ > %-50s │\n", truncate(line, 50))
	}
	return s
}

// renderStats renders pipeline statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ TX: %-6d Muted: %-6d Dropped: %-6d%-12s │
│ RX: %-6d Played: %-6d Errors: %-6d Late: %-4d │
`, m.capture.Sent, m.capture.Muted, m.capture.Dropped, "",
		m.playback.Received, m.playback.Scheduled, m.playback.DecodeErrors, m.playback.Underruns)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  r:Retry mic  d:Debug  q:Quit     │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session: %-41s │
│   Queued ahead: %-36s │
│   Blocks: %-6d Transmit errors: %-6d%-10s │
`, truncate(m.sessionID, 41), m.playback.Ahead.String(), m.capture.Blocks, m.capture.TransmitErrors, "")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "up":
		m.volume = clampVolume(m.volume + volumeStep)
		m.controls.setVolume(m.volume)
	case "down":
		m.volume = clampVolume(m.volume - volumeStep)
		m.controls.setVolume(m.volume)
	case "m":
		m.muted = !m.muted
		m.controls.setMuted(m.muted)
	case "r":
		m.controls.retry()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func clampVolume(v float64) float64 {
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.Mic != "" {
		m.mic = msg.Mic
	}
	if msg.NativeRate != 0 {
		m.nativeRate = msg.NativeRate
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Level != nil {
		m.level = *msg.Level
	}
	if msg.Narrator != nil {
		m.narrator = *msg.Narrator
	}
	if msg.Playing != nil {
		m.playing = *msg.Playing
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Line != "" {
		m.line = msg.Line
		m.speaker = msg.Speaker
	}
	if msg.Capture != nil {
		m.capture = *msg.Capture
	}
	if msg.Playback != nil {
		m.playback = *msg.Playback
	}
}

// StatusMsg updates TUI state. Zero and nil fields leave the current
// value in place.
type StatusMsg struct {
	Connected  *bool
	ServerName string
	SessionID  string
	Mic        string
	NativeRate int
	Muted      *bool
	Level      *float64
	Narrator   *voice.NarratorState
	Playing    *bool
	Volume     *float64
	Speaker    string
	Line       string
	Capture    *voice.CaptureStats
	Playback   *voice.PlaybackStats
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	return string([]rune(s)[:length-3]) + "..."
}
