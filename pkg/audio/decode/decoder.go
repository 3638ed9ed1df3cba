// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all playback frame decoders
package decode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

var (
	// ErrEmptyFrame is returned for a frame that carries no samples
	ErrEmptyFrame = errors.New("empty frame")

	// ErrTruncatedFrame is returned for a PCM frame with an odd byte count
	ErrTruncatedFrame = errors.New("truncated frame")
)

// Decoder decodes a wire payload to normalized float samples
type Decoder interface {
	// Decode converts encoded audio data to samples in [-1, 1]
	Decode(data []byte) ([]float32, error)

	// Close releases decoder resources
	Close() error
}

// New creates the decoder for format.Codec
func New(format audio.Format) (Decoder, error) {
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
