// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Opus packets to normalized float samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder *opus.Decoder
	format  audio.Format
	pcm16   []int16
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm16:   make([]int16, 5760*format.Channels), // Max frame size
	}, nil
}

// Decode converts one Opus packet to samples
func (d *OpusDecoder) Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	n, err := d.decoder.Decode(data, d.pcm16)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	actualSamples := n * d.format.Channels
	samples := make([]float32, actualSamples)
	for i := 0; i < actualSamples; i++ {
		samples[i] = audio.Int16ToFloat(d.pcm16[i])
	}
	return samples, nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
