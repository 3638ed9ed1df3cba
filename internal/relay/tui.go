// ABOUTME: Relay TUI showing participants, mic levels and narration
// ABOUTME: Real-time relay status display using bubbletea
package relay

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// TUI manages the relay TUI
type TUI struct {
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{}

	mu     sync.Mutex
	closed bool
}

// Status holds relay state for the TUI
type Status struct {
	Name         string
	Port         int
	Participants []ParticipantInfo
	Speaking     bool
	Line         string
	FramesSent   uint64
}

type tuiModel struct {
	status    Status
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg Status

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		port := m.status.Port
		m.status = Status(msg)
		if m.status.Port == 0 {
			m.status.Port = port
		}
		return m, nil
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	listHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down relay...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Voicebridge Relay"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Relay: "))
	b.WriteString(valueStyle.Render(m.status.Name))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Port: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.status.Port)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	narration := "paused"
	if m.status.Speaking {
		narration = "speaking"
	}
	b.WriteString(headerStyle.Render("Narration: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%d frames)", narration, m.status.FramesSent)))
	b.WriteString("\n")
	if m.status.Line != "" {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  %q", m.status.Line)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(listHeaderStyle.Render(fmt.Sprintf("Participants (%d)", len(m.status.Participants))))
	b.WriteString("\n\n")

	if len(m.status.Participants) == 0 {
		b.WriteString(valueStyle.Render("  No participants connected"))
		b.WriteString("\n")
	}
	for _, p := range m.status.Participants {
		b.WriteString(fmt.Sprintf("  • %s", p.Name))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, %d frames, %.0f dB)",
			p.Codec, p.Frames, audio.LevelDB(p.Level))))
		if p.Rejected > 0 {
			b.WriteString(valueStyle.Render(fmt.Sprintf(" %d rejected", p.Rejected)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewTUI creates a relay TUI
func NewTUI(name string, port int) *TUI {
	t := &TUI{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
	}

	t.program = tea.NewProgram(tuiModel{
		status:    Status{Name: name, Port: port},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}, tea.WithAltScreen())

	return t
}

// Start runs the TUI until it quits
func (t *TUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *TUI) Update(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
