// ABOUTME: Capture driver interfaces
// ABOUTME: Thin shims between platform audio APIs and the capture engine
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ErrPermissionDenied is wrapped into open errors caused by denied
// microphone consent
var ErrPermissionDenied = errors.New("microphone access denied")

// BlockFunc receives one block of mono samples in [-1, 1] at the device's
// native rate. It runs on the device's audio thread and must not block.
// The block is only valid for the duration of the call.
type BlockFunc func(block []float32)

// Constraints are front-end processing requests forwarded to the device
// layer. Backends that cannot honor them log and continue.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// Config holds capture device configuration
type Config struct {
	Constraints Constraints

	// SampleRate requests a capture rate; 0 uses the device's native rate
	SampleRate int

	// BlockFrames is the preferred callback size; 0 lets the device decide
	BlockFrames int

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Driver opens capture devices
type Driver interface {
	// Open acquires a device without starting it. onBlock is invoked once
	// per hardware block after Start.
	Open(cfg Config, onBlock BlockFunc) (Device, error)
}

// Device is an acquired capture device
type Device interface {
	// SampleRate is the actual native rate of delivered blocks
	SampleRate() int

	// Start begins delivering blocks
	Start() error

	// Close stops delivery and releases the device. Safe to call twice.
	Close() error
}

// DriverFunc adapts a function to the Driver interface
type DriverFunc func(cfg Config, onBlock BlockFunc) (Device, error)

// Open calls f
func (f DriverFunc) Open(cfg Config, onBlock BlockFunc) (Device, error) {
	return f(cfg, onBlock)
}

// classifyOpenError wraps err with ErrPermissionDenied when the backend
// reports a consent or access failure
func classifyOpenError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if errors.Is(err, os.ErrPermission) ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}

// downmix averages interleaved frames into mono
func downmix(dst []float32, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return append(dst[:0], interleaved...)
	}
	frames := len(interleaved) / channels
	dst = dst[:0]
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		dst = append(dst, sum/float32(channels))
	}
	return dst
}
