// ABOUTME: Audio output device interface definition
// ABOUTME: Common interface for playback backends pulling from a Timeline
package output

import (
	"fmt"
	"log/slog"
)

// Device represents an audio output device. Once opened, the device
// pulls rendered audio from the timeline at the timeline's rate.
type Device interface {
	// Open starts pulling audio from the timeline
	Open(t *Timeline) error

	// Close stops playback and releases device resources
	Close() error
}

// New creates the output device for backend ("oto" or "malgo")
func New(backend string, logger *slog.Logger) (Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case "oto", "":
		return NewOto(logger), nil
	case "malgo":
		return NewMalgo(logger), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}
