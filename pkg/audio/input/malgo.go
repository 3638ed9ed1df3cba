// ABOUTME: Malgo-based microphone capture
// ABOUTME: Opens the default capture device through miniaudio and delivers float blocks
package input

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo captures from the default microphone through miniaudio
type Malgo struct{}

// NewMalgo creates a malgo capture driver
func NewMalgo() *Malgo {
	return &Malgo{}
}

// malgoDevice is an acquired malgo capture device
type malgoDevice struct {
	mu       sync.Mutex
	logger   *slog.Logger
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	// buf is reused by the callback to avoid per-block allocation
	buf []float32
}

// Open initializes the capture device as mono float32 at its native rate
func (m *Malgo) Open(cfg Config, onBlock BlockFunc) (Device, error) {
	logger := cfg.logger()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	c := cfg.Constraints
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		logger.Debug("capture constraints are left to the OS audio stack",
			"echo_cancellation", c.EchoCancellation,
			"noise_suppression", c.NoiseSuppression,
			"auto_gain", c.AutoGainControl)
	}

	d := &malgoDevice{
		logger:   logger,
		malgoCtx: ctx,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	if cfg.BlockFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockFrames)
	}
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			n := int(frameCount)
			if n*4 > len(pInputSamples) {
				n = len(pInputSamples) / 4
			}
			if cap(d.buf) < n {
				d.buf = make([]float32, n)
			}
			block := d.buf[:n]
			for i := range block {
				block[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInputSamples[i*4:]))
			}
			onBlock(block)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize capture device: %w", classifyOpenError(err))
	}
	d.device = device

	logger.Info("capture device initialized", "backend", "malgo", "sample_rate", device.SampleRate())

	return d, nil
}

func (d *malgoDevice) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return 0
	}
	return int(d.device.SampleRate())
}

func (d *malgoDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return fmt.Errorf("capture device closed")
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", classifyOpenError(err))
	}
	return nil
}

func (d *malgoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		if err := d.device.Stop(); err != nil {
			d.logger.Warn("capture device stop error", "error", err)
		}
		d.device.Uninit()
		d.device = nil
	}

	if d.malgoCtx != nil {
		if err := d.malgoCtx.Uninit(); err != nil {
			d.logger.Warn("malgo context uninit error", "error", err)
		}
		d.malgoCtx.Free()
		d.malgoCtx = nil
	}
	return nil
}
