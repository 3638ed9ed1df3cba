// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit little-endian PCM to normalized float samples
package decode

import (
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct{}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}

	return &PCMDecoder{}, nil
}

// Decode converts PCM bytes to samples, dividing by 32768
func (d *PCMDecoder) Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedFrame, len(data))
	}

	pcm := audio.Int16LE(data)
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = audio.Int16ToFloat(s)
	}
	return samples, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
