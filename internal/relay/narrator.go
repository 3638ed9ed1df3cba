// ABOUTME: Synthetic narration engine for the development relay
// ABOUTME: Streams a 24 kHz voice-like tone in fixed frames with transcript lines and pauses
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/encode"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

// NarrationConfig shapes the synthetic narration
type NarrationConfig struct {
	// Frequency of the carrier tone (default: 220 Hz)
	Frequency float64

	// FrameDuration is the length of every emitted frame (default: 100ms)
	FrameDuration time.Duration

	// SpeakFor is the length of one spoken line (default: 4s)
	SpeakFor time.Duration

	// PauseFor is the silence between lines (default: 2s)
	PauseFor time.Duration

	// Lead is the number of frames sent at once when a line starts, so
	// participants hold a small buffer ahead of the playhead (default: 2)
	Lead int

	// Lines are announced as transcript events, one per spoken line
	Lines []string

	Speaker string
}

func (c *NarrationConfig) applyDefaults() {
	if c.Frequency == 0 {
		c.Frequency = 220
	}
	if c.FrameDuration == 0 {
		c.FrameDuration = 100 * time.Millisecond
	}
	if c.SpeakFor == 0 {
		c.SpeakFor = 4 * time.Second
	}
	if c.PauseFor == 0 {
		c.PauseFor = 2 * time.Second
	}
	if c.Lead == 0 {
		c.Lead = 2
	}
	if len(c.Lines) == 0 {
		c.Lines = defaultLines
	}
	if c.Speaker == "" {
		c.Speaker = "narrator"
	}
}

var defaultLines = []string{
	"The lantern flickers as the tide comes in.",
	"Someone in this room is not who they claim to be.",
	"Night falls. Close your eyes and listen.",
	"The village wakes to find the bell tower silent.",
}

// Narrator generates narration frames and hands them to emit
type Narrator struct {
	config   NarrationConfig
	envelope protocol.Envelope
	encoder  encode.Encoder
	logger   *slog.Logger

	emit     func(protocol.Packet)
	announce func(protocol.Message)

	mu          sync.Mutex
	speaking    bool
	phaseFrames int
	line        int
	current     string
	seq         uint64
	sampleIndex uint64

	frameSamples int
	speakFrames  int
	pauseFrames  int
}

// NewNarrator creates a narration engine. emit receives every audio packet
// and announce every transcript message.
func NewNarrator(config NarrationConfig, envelope protocol.Envelope, logger *slog.Logger,
	emit func(protocol.Packet), announce func(protocol.Message)) (*Narrator, error) {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	enc, err := encode.New(audio.PlaybackFormat("pcm"))
	if err != nil {
		return nil, fmt.Errorf("failed to create narration encoder: %w", err)
	}

	frameSamples := int(audio.DurationToFrames(config.FrameDuration, audio.PlaybackRate))
	if frameSamples <= 0 {
		enc.Close()
		return nil, fmt.Errorf("frame duration %v is too short", config.FrameDuration)
	}

	return &Narrator{
		config:       config,
		envelope:     envelope,
		encoder:      enc,
		logger:       logger,
		emit:         emit,
		announce:     announce,
		frameSamples: frameSamples,
		speakFrames:  frames(config.SpeakFor, config.FrameDuration),
		pauseFrames:  frames(config.PauseFor, config.FrameDuration),
	}, nil
}

func frames(d, frame time.Duration) int {
	n := int(d / frame)
	if n < 1 {
		return 1
	}
	return n
}

// Run paces the narration until ctx ends
func (n *Narrator) Run(ctx context.Context) error {
	n.logger.Info("narration starting",
		"frame", n.config.FrameDuration,
		"samples", n.frameSamples,
		"envelope", n.envelope.String())
	defer n.encoder.Close()

	ticker := time.NewTicker(n.config.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("narration stopping")
			return nil
		case <-ticker.C:
			n.step()
		}
	}
}

// step advances the narration by one frame period
func (n *Narrator) step() {
	n.mu.Lock()

	if !n.speaking {
		if n.phaseFrames < n.pauseFrames && n.seq > 0 {
			n.phaseFrames++
			n.mu.Unlock()
			return
		}

		n.speaking = true
		n.phaseFrames = 0
		n.current = n.config.Lines[n.line%len(n.config.Lines)]
		n.line++
		line := n.current
		lead := n.config.Lead
		n.mu.Unlock()

		n.announce(protocol.Message{Type: protocol.TypeTranscript, Speaker: n.config.Speaker, Text: line})
		for i := 0; i < lead; i++ {
			if !n.speakFrame() {
				return
			}
		}
		return
	}

	n.mu.Unlock()
	n.speakFrame()
}

// speakFrame emits one frame of the current line and reports whether the
// line continues
func (n *Narrator) speakFrame() bool {
	n.mu.Lock()
	if !n.speaking {
		n.mu.Unlock()
		return false
	}

	samples := n.generate()
	n.seq++
	seq := n.seq
	n.phaseFrames++
	if n.phaseFrames >= n.speakFrames {
		n.speaking = false
		n.phaseFrames = 0
	}
	more := n.speaking
	n.mu.Unlock()

	payloads, err := n.encoder.Encode(samples)
	if err != nil {
		n.logger.Error("narration encode failed", "error", err)
		return more
	}

	for _, payload := range payloads {
		pkt, err := n.envelope.Wrap(protocol.Frame{
			Codec:      n.encoder.Codec(),
			SampleRate: audio.PlaybackRate,
			Seq:        seq,
			Data:       payload,
		})
		if err != nil {
			n.logger.Error("narration wrap failed", "error", err)
			continue
		}
		n.emit(pkt)
	}
	return more
}

// generate produces one frame of a tone with a slow amplitude contour so
// the narration sounds like phrasing rather than a steady beep.
// Must be called with mu held.
func (n *Narrator) generate() []int16 {
	samples := make([]int16, n.frameSamples)
	rate := float64(audio.PlaybackRate)

	for i := range samples {
		t := float64(n.sampleIndex+uint64(i)) / rate
		contour := 0.5 + 0.5*math.Sin(2*math.Pi*1.5*t)
		s := math.Sin(2*math.Pi*n.config.Frequency*t) * 0.3 * contour
		samples[i] = audio.FloatToInt16(float32(s))
	}

	n.sampleIndex += uint64(n.frameSamples)
	return samples
}

// Speaking reports whether a line is being narrated
func (n *Narrator) Speaking() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.speaking
}

// Line returns the line currently or last narrated
func (n *Narrator) Line() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Sent returns the number of frames emitted
func (n *Narrator) Sent() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq
}
