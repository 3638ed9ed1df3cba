// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all capture frame encoders
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// Encoder encodes 16-bit PCM samples to wire payloads
type Encoder interface {
	// Encode converts PCM samples to zero or more encoded payloads.
	// Framed codecs buffer samples until a full frame is available.
	Encode(samples []int16) ([][]byte, error)

	// Codec returns the codec name carried in the envelope
	Codec() string

	// Close releases encoder resources
	Close() error
}

// New creates the encoder for format.Codec
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case "pcm", "":
		format.Codec = "pcm"
		return NewPCM(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}
