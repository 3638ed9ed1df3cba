// ABOUTME: Streaming playback of narration frames
// ABOUTME: Decodes inbound packets and schedules them gaplessly on a lazily opened output
package voice

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/decode"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/output"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

// PlaybackConfig holds playback configuration
type PlaybackConfig struct {
	// Device renders the timeline (default: oto)
	Device output.Device

	// Volume is the initial volume in [0, 1]. Nil means full volume;
	// an explicit 0 starts silent.
	Volume *float64

	// Tolerance is the queued audio below which playback counts as
	// finished when a buffer ends (default: 50ms)
	Tolerance time.Duration

	// SampleRate of inbound frames (default: 24000)
	SampleRate int

	// OnFrame is called for every scheduled buffer
	OnFrame func(slot Slot)

	Logger *slog.Logger
}

// PlaybackStats contains playback counters
type PlaybackStats struct {
	Received     int64
	Scheduled    int64
	DecodeErrors int64
	DeviceErrors int64
	Dropped      int64
	Underruns    int64
	Ahead        time.Duration
}

// Playback receives narration frames and plays them without gaps. The
// output device is opened when the first frame decodes successfully.
type Playback struct {
	config PlaybackConfig
	logger *slog.Logger
	gain   *output.Gain

	mu       sync.Mutex
	stopped  bool
	opened   bool
	timeline *output.Timeline
	sched    *Scheduler
	decoders map[string]decode.Decoder
	stats    PlaybackStats
}

// NewPlayback creates a playback session
func NewPlayback(config PlaybackConfig) *Playback {
	volume := 1.0
	if config.Volume != nil {
		volume = *config.Volume
	}
	if config.Tolerance == 0 {
		config.Tolerance = 50 * time.Millisecond
	}
	if config.SampleRate == 0 {
		config.SampleRate = audio.PlaybackRate
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Device == nil {
		config.Device = output.NewOto(config.Logger)
	}

	return &Playback{
		config:   config,
		logger:   config.Logger,
		gain:     output.NewGain(volume),
		decoders: make(map[string]decode.Decoder),
	}
}

// OnPacket handles one inbound packet. Malformed frames are logged and
// dropped without disturbing the schedule. Packets arriving after Stop
// are ignored.
func (p *Playback) OnPacket(pkt protocol.Packet) {
	frame, err := protocol.Unwrap(pkt, p.config.SampleRate)
	if err != nil {
		p.dropDecode(&DecodeError{Reason: "invalid envelope", Cause: err})
		return
	}
	p.OnFrame(frame)
}

// OnFrame handles one already unwrapped frame
func (p *Playback) OnFrame(frame protocol.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		p.stats.Dropped++
		return
	}
	p.stats.Received++

	samples, err := p.decodeLocked(frame)
	if err != nil {
		p.stats.DecodeErrors++
		p.logDrop(err, p.stats.DecodeErrors)
		return
	}

	if err := p.openLocked(); err != nil {
		p.stats.DeviceErrors++
		if n := p.stats.DeviceErrors; n == 1 || n%50 == 0 {
			p.logger.Error("playback device unavailable, dropping frame", "error", err, "count", n)
		}
		return
	}

	slot := p.sched.Schedule(samples)
	p.stats.Scheduled++

	if p.config.OnFrame != nil {
		p.config.OnFrame(slot)
	}
}

func (p *Playback) dropDecode(err *DecodeError) {
	p.mu.Lock()
	if p.stopped {
		p.stats.Dropped++
		p.mu.Unlock()
		return
	}
	p.stats.Received++
	p.stats.DecodeErrors++
	n := p.stats.DecodeErrors
	p.mu.Unlock()
	p.logDrop(err, n)
}

func (p *Playback) logDrop(err error, n int64) {
	if n == 1 || n%50 == 0 {
		p.logger.Warn("dropping narration frame", "error", err, "count", n)
	}
}

func (p *Playback) decodeLocked(frame protocol.Frame) ([]float32, error) {
	if frame.SampleRate != p.config.SampleRate {
		return nil, &DecodeError{
			Seq:    frame.Seq,
			Reason: fmt.Sprintf("unexpected sample rate %d", frame.SampleRate),
		}
	}

	dec, ok := p.decoders[frame.Codec]
	if !ok {
		var err error
		dec, err = decode.New(audio.PlaybackFormat(frame.Codec))
		if err != nil {
			return nil, &DecodeError{Seq: frame.Seq, Reason: "no decoder", Cause: err}
		}
		p.decoders[frame.Codec] = dec
	}

	samples, err := dec.Decode(frame.Data)
	if err != nil {
		return nil, &DecodeError{Seq: frame.Seq, Reason: "malformed payload", Cause: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Seq: frame.Seq, Reason: "no samples", Cause: decode.ErrEmptyFrame}
	}
	return samples, nil
}

// openLocked opens the output on first use
func (p *Playback) openLocked() error {
	if p.opened {
		return nil
	}

	tl := output.NewTimeline(p.config.SampleRate, p.gain)
	if err := p.config.Device.Open(tl); err != nil {
		return &DeviceError{Op: "open output", Cause: err}
	}

	tolerance := output.Position(audio.DurationToFrames(p.config.Tolerance, p.config.SampleRate))
	p.timeline = tl
	p.sched = NewScheduler(tl, tl, tolerance)
	p.opened = true

	p.logger.Info("playback started",
		"sample_rate", p.config.SampleRate,
		"volume", p.gain.Value())
	return nil
}

// IsPlaying reports whether narration audio is scheduled or rendering
func (p *Playback) IsPlaying() bool {
	p.mu.Lock()
	sched, stopped := p.sched, p.stopped
	p.mu.Unlock()
	return !stopped && sched != nil && sched.Active()
}

// Volume returns the current volume in [0, 1]
func (p *Playback) Volume() float64 {
	return p.gain.Value()
}

// SetVolume sets the volume, clamped to [0, 1]. It applies to audio that
// is already scheduled as well as to future frames. It returns the value
// actually stored.
func (p *Playback) SetVolume(v float64) float64 {
	return p.gain.Set(v)
}

// Stats returns playback counters
func (p *Playback) Stats() PlaybackStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	if p.sched != nil {
		s := p.sched.Stats()
		stats.Underruns = s.Underruns
		stats.Ahead = p.timeline.Duration(p.sched.Ahead())
	}
	return stats
}

// Stop ends playback and releases the output device. It is safe to call
// before the first frame and more than once; release errors are logged.
// A stopped playback drops every later frame.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	if p.opened {
		if err := p.config.Device.Close(); err != nil {
			p.logger.Warn("playback device release failed", "error", err)
		}
		p.timeline.Close()
	}

	for codec, dec := range p.decoders {
		if err := dec.Close(); err != nil {
			p.logger.Warn("decoder release failed", "codec", codec, "error", err)
		}
	}
	p.decoders = map[string]decode.Decoder{}

	p.logger.Info("playback stopped")
}
