// ABOUTME: Narrator liveness monitor
// ABOUTME: Classifies the remote voice as speaking, idle or stalled from activity and content events
package voice

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// NarratorState is the observed state of the remote voice
type NarratorState int

const (
	StateIdle NarratorState = iota
	StateSpeaking
	StateStalled
)

func (s NarratorState) String() string {
	switch s {
	case StateSpeaking:
		return "speaking"
	case StateIdle:
		return "idle"
	case StateStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// MonitorConfig holds liveness monitor configuration
type MonitorConfig struct {
	// Activity reports whether narration audio is currently playing
	Activity func() bool

	// StallTimeout is the silence after which the narrator is stalled (default: 15s)
	StallTimeout time.Duration

	// ContentWindow is how long a content event keeps the narrator speaking (default: 1.5s)
	ContentWindow time.Duration

	// PollInterval is the Run evaluation period (default: 250ms)
	PollInterval time.Duration

	// OnChange is called on every state transition
	OnChange func(state NarratorState)

	// Now overrides the wall clock
	Now func() time.Time

	Logger *slog.Logger
}

// Monitor tracks narrator liveness. Every activity or content event
// restarts the stall window; the narrator is stalled only after a full
// StallTimeout passes with no event at all.
type Monitor struct {
	config MonitorConfig
	logger *slog.Logger

	mu          sync.Mutex
	windowStart time.Time
	lastContent time.Time
	state       NarratorState
}

// NewMonitor creates a monitor whose stall window starts now
func NewMonitor(config MonitorConfig) *Monitor {
	if config.StallTimeout <= 0 {
		config.StallTimeout = 15 * time.Second
	}
	if config.ContentWindow <= 0 {
		config.ContentWindow = 1500 * time.Millisecond
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 250 * time.Millisecond
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Monitor{
		config:      config,
		logger:      config.Logger,
		windowStart: config.Now(),
		state:       StateIdle,
	}
}

// NoteActivity records that narration audio was scheduled
func (m *Monitor) NoteActivity() {
	now := m.config.Now()
	m.mu.Lock()
	m.windowStart = now
	m.mu.Unlock()
}

// NoteContent records a new content event such as a transcript line
func (m *Monitor) NoteContent() {
	now := m.config.Now()
	m.mu.Lock()
	m.windowStart = now
	m.lastContent = now
	m.mu.Unlock()
}

// Reset restarts the stall window and forgets past content
func (m *Monitor) Reset() {
	now := m.config.Now()
	m.mu.Lock()
	m.windowStart = now
	m.lastContent = time.Time{}
	m.mu.Unlock()
}

// Evaluate computes the current state, reporting a transition through
// OnChange
func (m *Monitor) Evaluate() NarratorState {
	active := m.config.Activity != nil && m.config.Activity()
	now := m.config.Now()

	m.mu.Lock()
	if active {
		m.windowStart = now
	}

	var next NarratorState
	switch {
	case active:
		next = StateSpeaking
	case !m.lastContent.IsZero() && now.Sub(m.lastContent) < m.config.ContentWindow:
		next = StateSpeaking
	case now.Sub(m.windowStart) < m.config.StallTimeout:
		next = StateIdle
	default:
		next = StateStalled
	}

	prev := m.state
	m.state = next
	m.mu.Unlock()

	if next != prev {
		m.logger.Debug("narrator state changed", "from", prev.String(), "to", next.String())
		if m.config.OnChange != nil {
			m.config.OnChange(next)
		}
	}
	return next
}

// State returns the state computed by the last Evaluate
func (m *Monitor) State() NarratorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SinceEvent returns the time since the stall window last restarted
func (m *Monitor) SinceEvent() time.Duration {
	now := m.config.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Sub(m.windowStart)
}

// Run evaluates on every poll interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Evaluate()
		}
	}
}
