// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Resonate-Protocol/voicebridge/pkg/voice"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil, 0.8, false) // Controls are optional for testing

	if model.connected {
		t.Error("expected connected to be false initially")
	}
	if model.volume != 0.8 {
		t.Errorf("expected volume 0.8, got %v", model.volume)
	}
	if model.muted {
		t.Error("expected muted to be false initially")
	}
	if model.narrator != voice.StateIdle {
		t.Errorf("expected idle narrator, got %s", model.narrator)
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestStatusMsgConnected(t *testing.T) {
	model := NewModel(nil, 1, false)

	connected := true
	model.applyStatus(StatusMsg{
		Connected:  &connected,
		ServerName: "relay.local:8927",
		SessionID:  "abc",
	})

	if !model.connected {
		t.Error("expected connected to be true after status update")
	}
	if model.serverName != "relay.local:8927" {
		t.Errorf("expected serverName 'relay.local:8927', got '%s'", model.serverName)
	}

	disconnected := false
	model.applyStatus(StatusMsg{Connected: &disconnected})
	if model.connected {
		t.Error("expected connected to be false after disconnect")
	}
	if model.serverName != "relay.local:8927" {
		t.Error("expected server name kept on partial update")
	}
}

func TestStatusMsgNarrator(t *testing.T) {
	model := NewModel(nil, 1, false)

	state := voice.StateSpeaking
	playing := true
	model.applyStatus(StatusMsg{
		Narrator: &state,
		Playing:  &playing,
		Speaker:  "Narrator",
		Line:     "The village sleeps.",
	})

	if model.narrator != voice.StateSpeaking || !model.playing {
		t.Errorf("unexpected narrator state %s playing=%v", model.narrator, model.playing)
	}
	if model.line != "The village sleeps." || model.speaker != "Narrator" {
		t.Errorf("unexpected line %q by %q", model.line, model.speaker)
	}
}

func TestStatusMsgStats(t *testing.T) {
	model := NewModel(nil, 1, false)

	model.applyStatus(StatusMsg{
		Capture:  &voice.CaptureStats{Sent: 10, Dropped: 1},
		Playback: &voice.PlaybackStats{Received: 5, Underruns: 2, Ahead: 120 * time.Millisecond},
	})

	if model.capture.Sent != 10 || model.capture.Dropped != 1 {
		t.Errorf("unexpected capture stats: %+v", model.capture)
	}
	if model.playback.Received != 5 || model.playback.Underruns != 2 {
		t.Errorf("unexpected playback stats: %+v", model.playback)
	}
}

func TestVolumeKeys(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 0.5, false)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyUp})
	model = updated.(Model)
	if model.volume != 0.55 {
		t.Errorf("expected 0.55 after up, got %v", model.volume)
	}
	if v := <-controls.Volume; v != 0.55 {
		t.Errorf("expected 0.55 sent to controls, got %v", v)
	}

	for i := 0; i < 20; i++ {
		updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
		model = updated.(Model)
	}
	if model.volume != 0 {
		t.Errorf("expected volume clamped at 0, got %v", model.volume)
	}

	for i := 0; i < 30; i++ {
		updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})
		model = updated.(Model)
	}
	if model.volume != 1 {
		t.Errorf("expected volume clamped at 1, got %v", model.volume)
	}
}

func TestMuteKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 1, false)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})
	model = updated.(Model)

	if !model.muted {
		t.Error("expected muted after 'm'")
	}
	if muted := <-controls.Mute; !muted {
		t.Error("expected mute sent to controls")
	}
}

func TestRetryKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 1, false)

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	select {
	case <-controls.Retry:
	default:
		t.Fatal("expected retry signalled to controls")
	}
	select {
	case <-controls.Retry:
		t.Error("expected repeated retries to coalesce")
	default:
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls, 1, false)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit signalled to controls")
	}
}

func TestKeysWithoutControls(t *testing.T) {
	model := NewModel(nil, 1, false)

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyUp},
		{Type: tea.KeyDown},
		{Type: tea.KeyRunes, Runes: []rune{'m'}},
		{Type: tea.KeyRunes, Runes: []rune{'r'}},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		model.Update(key)
	}
}

func TestView(t *testing.T) {
	model := NewModel(nil, 0.75, false)

	if got := model.View(); got != "Loading..." {
		t.Errorf("expected loading view before size, got %q", got)
	}

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	model = updated.(Model)

	connected := true
	level := 0.1
	model.applyStatus(StatusMsg{Connected: &connected, ServerName: "relay", Mic: "live", NativeRate: 48000, Level: &level})

	view := model.View()
	for _, want := range []string{"Connected to relay", "48000Hz -> 16000Hz", "75%", "Narrator: idle"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}

	model.muted = true
	if !strings.Contains(model.View(), "muted") {
		t.Error("expected muted mic shown")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := truncate("a very long transcript line", 10); got != "a very ..." {
		t.Errorf("expected truncation, got %q", got)
	}
}

func TestRenderBar(t *testing.T) {
	if got := renderBar(50, 100, 10); got != "█████░░░░░" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := renderBar(150, 100, 4); got != "████" {
		t.Errorf("expected full bar on overflow, got %q", got)
	}
	if got := renderBar(-5, 100, 4); got != "░░░░" {
		t.Errorf("expected empty bar on underflow, got %q", got)
	}
}
