// ABOUTME: Resampling capture engine
// ABOUTME: Converts native-rate microphone blocks to 16kHz frames and hands them to a transmitter
package voice

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/encode"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/input"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/resample"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

// Transmitter carries encoded capture frames to the remote side.
// No acknowledgement is awaited.
type Transmitter interface {
	Transmit(pkt protocol.Packet) error
}

// TransmitterFunc adapts a function to the Transmitter interface
type TransmitterFunc func(pkt protocol.Packet) error

// Transmit calls f
func (f TransmitterFunc) Transmit(pkt protocol.Packet) error {
	return f(pkt)
}

// CaptureConfig holds capture engine configuration
type CaptureConfig struct {
	// Driver opens the microphone
	Driver input.Driver

	// Transmitter receives every frame produced while unmuted
	Transmitter Transmitter

	// Codec is "pcm" (default) or "opus"
	Codec string

	// Envelope wraps frames for the transport
	Envelope protocol.Envelope

	// Constraints are forwarded to the device layer
	Constraints input.Constraints

	// BlockFrames is the preferred device block size (0 = device default)
	BlockFrames int

	// OutboxSize bounds frames waiting for the transmitter (default: 32)
	OutboxSize int

	Logger *slog.Logger
}

// CaptureStats contains capture counters
type CaptureStats struct {
	Blocks         int64
	Frames         int64
	Sent           int64
	Muted          int64
	Dropped        int64
	TransmitErrors int64
}

// Capture is the resampling capture engine. OnBlock runs on the device's
// audio thread; everything it hands outward goes through a bounded outbox
// drained by a separate goroutine.
type Capture struct {
	config CaptureConfig
	logger *slog.Logger

	// gate is read-held for the duration of one block and write-held by
	// Start and Stop. The callback only ever tries the read lock.
	gate      sync.RWMutex
	running   bool
	device    input.Device
	resampler *resample.Resampler
	encoder   encode.Encoder
	outbox    chan protocol.Packet
	cancel    context.CancelFunc
	done      chan struct{}

	// callback-owned scratch state
	pcm []int16
	seq uint64

	muted atomic.Bool
	level atomic.Uint64

	blocks         atomic.Int64
	frames         atomic.Int64
	sent           atomic.Int64
	mutedFrames    atomic.Int64
	dropped        atomic.Int64
	transmitErrors atomic.Int64
}

// NewCapture creates a capture engine
func NewCapture(config CaptureConfig) *Capture {
	if config.Codec == "" {
		config.Codec = "pcm"
	}
	if config.OutboxSize <= 0 {
		config.OutboxSize = 32
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Capture{
		config: config,
		logger: config.Logger,
	}
}

// Start acquires the microphone and begins producing frames. It returns a
// *PermissionError when consent is denied and a *DeviceError for any other
// failure; on error nothing is left running. Starting a running engine is
// a no-op.
func (c *Capture) Start(ctx context.Context) error {
	c.gate.Lock()
	defer c.gate.Unlock()

	if c.running {
		return nil
	}
	if c.config.Driver == nil {
		return &DeviceError{Op: "open", Cause: errors.New("no capture driver configured")}
	}

	enc, err := encode.New(audio.CaptureFormat(c.config.Codec))
	if err != nil {
		return &DeviceError{Op: "encoder init", Cause: err}
	}

	dev, err := c.config.Driver.Open(input.Config{
		Constraints: c.config.Constraints,
		BlockFrames: c.config.BlockFrames,
		Logger:      c.logger,
	}, c.OnBlock)
	if err != nil {
		enc.Close()
		return openError(err)
	}

	r, err := resample.New(dev.SampleRate(), audio.CaptureRate)
	if err != nil {
		dev.Close()
		enc.Close()
		return &DeviceError{Op: "open", Cause: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.device = dev
	c.resampler = r
	c.encoder = enc
	c.outbox = make(chan protocol.Packet, c.config.OutboxSize)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.seq = 0
	c.running = true

	go c.transmitLoop(loopCtx, c.outbox, c.done)

	if err := dev.Start(); err != nil {
		c.releaseLocked()
		return openError(err)
	}

	c.logger.Info("capture started",
		"native_rate", dev.SampleRate(),
		"target_rate", audio.CaptureRate,
		"codec", enc.Codec(),
		"envelope", c.config.Envelope.String())

	return nil
}

func openError(err error) error {
	if errors.Is(err, input.ErrPermissionDenied) {
		return &PermissionError{Cause: err}
	}
	return &DeviceError{Op: "open", Cause: err}
}

// OnBlock processes one native-rate block. It is the device callback and
// must be invoked from a single goroutine. It never blocks: while Start or
// Stop holds the gate the block is skipped.
func (c *Capture) OnBlock(block []float32) {
	if !c.gate.TryRLock() {
		return
	}
	defer c.gate.RUnlock()

	if !c.running {
		return
	}

	c.blocks.Add(1)
	c.level.Store(math.Float64bits(audio.RMS(block)))

	c.pcm = c.resampler.ProcessInto(c.pcm, block)
	if len(c.pcm) == 0 {
		return
	}

	payloads, err := c.encoder.Encode(c.pcm)
	if err != nil {
		c.logger.Debug("capture encode failed", "error", err)
	}

	for _, payload := range payloads {
		c.seq++
		c.frames.Add(1)

		if c.muted.Load() {
			c.mutedFrames.Add(1)
			continue
		}

		pkt, err := c.config.Envelope.Wrap(protocol.Frame{
			Codec:      c.encoder.Codec(),
			SampleRate: audio.CaptureRate,
			Seq:        c.seq,
			Data:       payload,
		})
		if err != nil {
			c.dropped.Add(1)
			continue
		}

		select {
		case c.outbox <- pkt:
		default:
			c.dropped.Add(1)
		}
	}
}

// transmitLoop hands frames to the transmitter off the audio thread
func (c *Capture) transmitLoop(ctx context.Context, outbox <-chan protocol.Packet, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-outbox:
			if c.config.Transmitter == nil {
				continue
			}
			if err := c.config.Transmitter.Transmit(pkt); err != nil {
				if n := c.transmitErrors.Add(1); n == 1 || n%100 == 0 {
					c.logger.Warn("capture frame transmit failed", "error", err, "count", n)
				}
				continue
			}
			c.sent.Add(1)
		}
	}
}

// SetMuted toggles transmission. Muted blocks still run through the
// resampler and encoder so the stream stays phase-continuous.
func (c *Capture) SetMuted(muted bool) {
	if c.muted.Swap(muted) != muted {
		c.logger.Info("capture mute changed", "muted", muted)
	}
}

// Muted returns the mute state
func (c *Capture) Muted() bool {
	return c.muted.Load()
}

// Running reports whether a capture session is active
func (c *Capture) Running() bool {
	c.gate.RLock()
	defer c.gate.RUnlock()
	return c.running
}

// Level returns the RMS level of the most recent block
func (c *Capture) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

// ResampleState returns the resampler position of the current session
func (c *Capture) ResampleState() resample.State {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.resampler == nil {
		return resample.State{}
	}
	return c.resampler.State()
}

// Stats returns capture counters
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		Blocks:         c.blocks.Load(),
		Frames:         c.frames.Load(),
		Sent:           c.sent.Load(),
		Muted:          c.mutedFrames.Load(),
		Dropped:        c.dropped.Load(),
		TransmitErrors: c.transmitErrors.Load(),
	}
}

// Stop ends the capture session and releases the device. It waits for an
// in-flight block to finish, is safe to call before Start or more than
// once, and never fails: release errors are logged.
func (c *Capture) Stop() {
	c.gate.Lock()
	defer c.gate.Unlock()

	if !c.running {
		return
	}
	c.releaseLocked()
	c.logger.Info("capture stopped")
}

// releaseLocked tears the session down; c.gate must be write-held
func (c *Capture) releaseLocked() {
	c.running = false

	if c.device != nil {
		if err := c.device.Close(); err != nil {
			c.logger.Warn("capture device release failed", "error", err)
		}
		c.device = nil
	}
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	if c.encoder != nil {
		if err := c.encoder.Close(); err != nil {
			c.logger.Warn("capture encoder release failed", "error", err)
		}
		c.encoder = nil
	}
	c.resampler = nil
	c.outbox = nil
}
