// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int16 samples to 16-bit little-endian PCM bytes
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	channels int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMEncoder{
		channels: format.Channels,
	}, nil
}

// Encode converts samples to a single little-endian payload
func (e *PCMEncoder) Encode(samples []int16) ([][]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	output := make([]byte, len(samples)*2)
	audio.PutInt16LE(output, samples)
	return [][]byte{output}, nil
}

// Codec returns "pcm"
func (e *PCMEncoder) Codec() string {
	return "pcm"
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
