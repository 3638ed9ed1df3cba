// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo and renders the Timeline inside the device callback
package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu       sync.Mutex
	logger   *slog.Logger
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	timeline *Timeline
}

// NewMalgo creates a new Malgo output
func NewMalgo(logger *slog.Logger) *Malgo {
	return &Malgo{logger: logger}
}

// Open initializes the playback device at the timeline's rate
func (m *Malgo) Open(t *Timeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("output already open")
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(t.Rate())
	deviceConfig.Alsa.NoMMap = 1

	// The callback renders straight into the device buffer
	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			n := int(frameCount) * 2
			if n > len(pOutputSample) {
				n = len(pOutputSample)
			}
			if _, err := t.Read(pOutputSample[:n]); err != nil {
				for i := range pOutputSample {
					pOutputSample[i] = 0
				}
			}
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.timeline = t

	m.logger.Info("audio output initialized", "backend", "malgo", "sample_rate", t.Rate())

	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.logger.Warn("device stop error", "error", err)
		}
		m.device.Uninit()
		m.device = nil
	}

	if m.timeline != nil {
		m.timeline.Close()
		m.timeline = nil
	}

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.logger.Warn("malgo context uninit error", "error", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}
