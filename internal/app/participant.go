// ABOUTME: Participant application orchestration
// ABOUTME: Wires relay connection, microphone capture, narration playback and liveness together
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/voicebridge/internal/client"
	"github.com/Resonate-Protocol/voicebridge/internal/discovery"
	"github.com/Resonate-Protocol/voicebridge/internal/observe"
	"github.com/Resonate-Protocol/voicebridge/internal/ui"
	"github.com/Resonate-Protocol/voicebridge/internal/version"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/input"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/output"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
	"github.com/Resonate-Protocol/voicebridge/pkg/voice"
)

// ErrDisconnected is returned by Run when the relay closes the connection
var ErrDisconnected = errors.New("relay connection lost")

// Microphone states reported to the UI
const (
	MicOff         = "off"
	MicLive        = "live"
	MicDenied      = "denied"
	MicUnavailable = "unavailable"
)

// Config holds participant configuration
type Config struct {
	// ServerAddr is the relay host:port; empty discovers one via mDNS
	ServerAddr string
	Path       string
	Name       string

	// DiscoveryTimeout bounds the mDNS search (default: 10s)
	DiscoveryTimeout time.Duration

	Driver      input.Driver
	Constraints input.Constraints
	BlockFrames int
	OutboxSize  int
	Codec       string
	Envelope    protocol.Envelope
	Muted       bool

	Output    output.Device
	Volume    *float64
	Tolerance time.Duration

	StallTimeout  time.Duration
	ContentWindow time.Duration
	PollInterval  time.Duration

	// StatusInterval paces OnStatus updates (default: 500ms)
	StatusInterval time.Duration

	// MeterProvider receives pipeline metrics; nil disables them
	MeterProvider metric.MeterProvider

	// OnStatus receives UI updates; nil disables them
	OnStatus func(ui.StatusMsg)

	Logger *slog.Logger
}

// Participant is one voice session against a relay
type Participant struct {
	config Config
	logger *slog.Logger

	capture  *voice.Capture
	playback *voice.Playback
	monitor  *voice.Monitor

	mu      sync.RWMutex
	client  *client.Client
	metrics *observe.Metrics
	mic     string

	// captureMu serializes microphone start and stop against Close
	captureMu sync.Mutex
	session   context.Context
	closed    bool

	closeOnce sync.Once
	closeErr  error
}

// New creates a participant. Nothing is opened until Run.
func New(config Config) *Participant {
	if config.Path == "" {
		config.Path = "/voice"
	}
	if config.DiscoveryTimeout == 0 {
		config.DiscoveryTimeout = 10 * time.Second
	}
	if config.StatusInterval == 0 {
		config.StatusInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	p := &Participant{
		config: config,
		logger: config.Logger,
		mic:    MicOff,
	}

	p.capture = voice.NewCapture(voice.CaptureConfig{
		Driver:      config.Driver,
		Transmitter: voice.TransmitterFunc(p.transmit),
		Codec:       config.Codec,
		Envelope:    config.Envelope,
		Constraints: config.Constraints,
		BlockFrames: config.BlockFrames,
		OutboxSize:  config.OutboxSize,
		Logger:      config.Logger,
	})
	p.capture.SetMuted(config.Muted)

	p.monitor = voice.NewMonitor(voice.MonitorConfig{
		Activity: func() bool {
			return p.playback.IsPlaying()
		},
		StallTimeout:  config.StallTimeout,
		ContentWindow: config.ContentWindow,
		PollInterval:  config.PollInterval,
		OnChange:      p.narratorChanged,
		Logger:        config.Logger,
	})

	p.playback = voice.NewPlayback(voice.PlaybackConfig{
		Device:    config.Output,
		Volume:    config.Volume,
		Tolerance: config.Tolerance,
		OnFrame: func(voice.Slot) {
			p.monitor.NoteActivity()
		},
		Logger: config.Logger,
	})

	return p
}

// Run connects to the relay and runs the session until ctx ends or the
// relay goes away. The participant is closed when Run returns.
func (p *Participant) Run(ctx context.Context) error {
	defer p.Close()

	addr, path, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		Path:       path,
		ClientID:   uuid.New().String(),
		Name:       p.config.Name,
		DeviceInfo: version.DeviceInfo(),
		Capture:  protocol.AudioFormat{Codec: p.captureCodec(), Channels: 1, SampleRate: audio.CaptureRate, BitDepth: 16},
		Playback: protocol.AudioFormat{Codec: "pcm", Channels: 1, SampleRate: audio.PlaybackRate, BitDepth: 16},
		Logger:   p.logger,
	})
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	p.mu.Lock()
	p.client = c
	p.mu.Unlock()

	connected := true
	p.status(ui.StatusMsg{Connected: &connected, ServerName: addr, SessionID: c.SessionID()})
	p.logger.Info("connected to relay", "addr", addr, "session", c.SessionID())

	p.captureMu.Lock()
	p.session = ctx
	p.captureMu.Unlock()

	// A failed microphone is reported and the session continues
	p.StartCapture()

	if p.config.MeterProvider != nil {
		if err := p.startMetrics(); err != nil {
			p.logger.Warn("metrics disabled", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case pkt := <-c.Audio:
				p.playback.OnPacket(pkt)
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case msg := <-c.Transcripts:
				p.monitor.NoteContent()
				p.logger.Debug("transcript", "speaker", msg.Speaker, "text", msg.Text)
				p.status(ui.StatusMsg{Speaker: msg.Speaker, Line: msg.Text})
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		return p.monitor.Run(gctx)
	})

	g.Go(func() error {
		return p.statusLoop(gctx)
	})

	g.Go(func() error {
		select {
		case <-c.Done():
			return ErrDisconnected
		case <-gctx.Done():
			return nil
		}
	})

	err = g.Wait()

	connected = false
	p.status(ui.StatusMsg{Connected: &connected})
	return err
}

// resolve returns the relay address and path, discovering one when none
// is configured
func (p *Participant) resolve(ctx context.Context) (string, string, error) {
	if p.config.ServerAddr != "" {
		return p.config.ServerAddr, p.config.Path, nil
	}

	p.logger.Info("searching for a relay", "timeout", p.config.DiscoveryTimeout)
	disc := discovery.NewManager(discovery.Config{ServiceName: p.config.Name, Logger: p.logger})
	defer disc.Stop()

	dctx, cancel := context.WithTimeout(ctx, p.config.DiscoveryTimeout)
	defer cancel()

	server, err := disc.Discover(dctx)
	if err != nil {
		return "", "", err
	}
	p.logger.Info("discovered relay", "name", server.Name, "addr", server.Addr())
	return server.Addr(), server.Path, nil
}

// StartCapture opens the microphone for the running session. A failure is
// a *voice.PermissionError or *voice.DeviceError and leaves the session
// running without a microphone; calling StartCapture again retries.
func (p *Participant) StartCapture() error {
	p.captureMu.Lock()
	if p.closed || p.session == nil {
		p.captureMu.Unlock()
		return client.ErrNotConnected
	}
	err := p.capture.Start(p.session)
	p.captureMu.Unlock()

	p.reportCapture(err)
	return err
}

// StopCapture releases the microphone and keeps the session running
func (p *Participant) StopCapture() {
	p.captureMu.Lock()
	p.capture.Stop()
	p.captureMu.Unlock()

	p.setMic(MicOff)
	p.logger.Info("microphone stopped")
}

func (p *Participant) reportCapture(err error) {
	var permErr *voice.PermissionError
	var devErr *voice.DeviceError
	switch {
	case err == nil:
		p.setMic(MicLive)
		st := p.capture.ResampleState()
		p.status(ui.StatusMsg{NativeRate: int(math.Round(st.Ratio * audio.CaptureRate))})
	case errors.As(err, &permErr):
		p.setMic(MicDenied)
		p.logger.Warn("microphone permission denied, continuing without microphone", "error", err)
	case errors.As(err, &devErr):
		p.setMic(MicUnavailable)
		p.logger.Warn("microphone unavailable, continuing without microphone", "error", err)
	default:
		p.setMic(MicUnavailable)
		p.logger.Error("microphone failed", "error", err)
	}
}

func (p *Participant) startMetrics() error {
	m, err := observe.NewMetrics(p.config.MeterProvider, observe.Sources{
		Capture:  p.capture.Stats,
		Playback: p.playback.Stats,
		Narrator: p.monitor.State,
		Volume:   p.playback.Volume,
		MicLevel: p.capture.Level,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.metrics = m
	p.mu.Unlock()
	return nil
}

// transmit hands a capture packet to the relay connection
func (p *Participant) transmit(pkt protocol.Packet) error {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()

	if c == nil {
		return client.ErrNotConnected
	}
	return c.Transmit(pkt)
}

// narratorChanged reports monitor transitions
func (p *Participant) narratorChanged(state voice.NarratorState) {
	if state == voice.StateStalled {
		p.logger.Warn("narrator stalled", "since_event", p.monitor.SinceEvent())
	} else {
		p.logger.Info("narrator state", "state", state.String())
	}
	p.status(ui.StatusMsg{Narrator: &state})
}

// statusLoop periodically publishes pipeline statistics
func (p *Participant) statusLoop(ctx context.Context) error {
	if p.config.OnStatus == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cs := p.capture.Stats()
			ps := p.playback.Stats()
			playing := p.playback.IsPlaying()
			level := p.capture.Level()
			volume := p.playback.Volume()
			muted := p.capture.Muted()

			p.status(ui.StatusMsg{
				Mic:      p.Mic(),
				Muted:    &muted,
				Level:    &level,
				Playing:  &playing,
				Volume:   &volume,
				Capture:  &cs,
				Playback: &ps,
			})
		}
	}
}

func (p *Participant) status(msg ui.StatusMsg) {
	if p.config.OnStatus != nil {
		p.config.OnStatus(msg)
	}
}

func (p *Participant) setMic(state string) {
	p.mu.Lock()
	p.mic = state
	p.mu.Unlock()
	p.status(ui.StatusMsg{Mic: state})
}

func (p *Participant) captureCodec() string {
	if p.config.Codec == "" {
		return "pcm"
	}
	return p.config.Codec
}

// Mic returns the microphone state
func (p *Participant) Mic() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mic
}

// SetVolume sets the narration volume and returns the stored value
func (p *Participant) SetVolume(v float64) float64 {
	stored := p.playback.SetVolume(v)
	p.logger.Info("volume changed", "volume", stored)
	p.status(ui.StatusMsg{Volume: &stored})
	return stored
}

// Volume returns the narration volume
func (p *Participant) Volume() float64 {
	return p.playback.Volume()
}

// SetMuted mutes or unmutes the microphone without stopping capture
func (p *Participant) SetMuted(muted bool) {
	p.capture.SetMuted(muted)
	p.status(ui.StatusMsg{Muted: &muted})
}

// Muted reports whether the microphone is muted
func (p *Participant) Muted() bool {
	return p.capture.Muted()
}

// Narrator returns the narrator's liveness state
func (p *Participant) Narrator() voice.NarratorState {
	return p.monitor.State()
}

// CaptureStats returns microphone pipeline statistics
func (p *Participant) CaptureStats() voice.CaptureStats {
	return p.capture.Stats()
}

// PlaybackStats returns narration pipeline statistics
func (p *Participant) PlaybackStats() voice.PlaybackStats {
	return p.playback.Stats()
}

// Close tears the session down. Teardown errors are aggregated, logged and
// returned; calling Close again returns the same result.
func (p *Participant) Close() error {
	p.closeOnce.Do(func() {
		var result *multierror.Error

		p.captureMu.Lock()
		p.closed = true
		p.capture.Stop()
		p.captureMu.Unlock()

		p.playback.Stop()

		p.mu.Lock()
		m, c := p.metrics, p.client
		p.metrics = nil
		p.mu.Unlock()

		if m != nil {
			result = multierror.Append(result, m.Close())
		}
		if c != nil {
			result = multierror.Append(result, c.Close())
		}

		p.closeErr = result.ErrorOrNil()
		if p.closeErr != nil {
			p.logger.Warn("teardown errors", "error", p.closeErr)
		}
		p.setMic(MicOff)
	})
	return p.closeErr
}
