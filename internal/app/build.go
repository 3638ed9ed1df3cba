// ABOUTME: Builds a participant configuration from loaded settings
// ABOUTME: Selects the microphone driver, output backend and envelope
package app

import (
	"fmt"
	"log/slog"

	"github.com/Resonate-Protocol/voicebridge/internal/config"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/input"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/output"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

// nominalDeviceRate sizes device blocks when the native rate is unknown
const nominalDeviceRate = 48000

// FromSettings turns validated settings into a participant Config
func FromSettings(s *config.Config, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := protocol.ParseEnvelope(s.Capture.Envelope)
	if err != nil {
		return Config{}, err
	}

	out, err := output.New(s.Playback.Backend, logger)
	if err != nil {
		return Config{}, err
	}

	driver, rate, err := Driver(s.Capture)
	if err != nil {
		return Config{}, err
	}

	volume := s.Playback.Volume

	return Config{
		ServerAddr: s.Server,
		Name:       s.Name,
		Driver:     driver,
		Constraints: input.Constraints{
			EchoCancellation: s.Capture.EchoCancellation,
			NoiseSuppression: s.Capture.NoiseSuppression,
			AutoGainControl:  s.Capture.AutoGainControl,
		},
		BlockFrames:   s.Capture.BlockMs * rate / 1000,
		OutboxSize:    s.Capture.OutboxFrames,
		Codec:         s.Capture.Codec,
		Envelope:      env,
		Muted:         s.Capture.Muted,
		Output:        out,
		Volume:        &volume,
		Tolerance:     s.Playback.Tolerance,
		StallTimeout:  s.Liveness.StallTimeout,
		ContentWindow: s.Liveness.ContentWindow,
		PollInterval:  s.Liveness.PollInterval,
		Logger:        logger,
	}, nil
}

// Driver returns the microphone driver for the capture source and the rate
// used to size its blocks
func Driver(c config.CaptureConfig) (input.Driver, int, error) {
	switch c.Source {
	case "device", "":
		return input.NewMalgo(), nominalDeviceRate, nil
	case "tone":
		return input.NewTone(c.ToneRate, c.ToneHz, 0.3), c.ToneRate, nil
	case "file":
		if c.File == "" {
			return nil, 0, fmt.Errorf("capture source file needs a path")
		}
		return input.NewFile(c.File, c.Loop), nominalDeviceRate, nil
	default:
		return nil, 0, fmt.Errorf("unknown capture source: %s", c.Source)
	}
}
