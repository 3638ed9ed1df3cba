// ABOUTME: Opus audio encoder
// ABOUTME: Buffers int16 samples into 20ms frames and encodes them to Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int
	pending    []int16
	packet     []byte
}

// NewOpus creates a new Opus encoder
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// Opus frame size depends on sample rate
	frameSize := format.SampleRate / 50 * format.Channels // 20ms frame

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameSize:  frameSize,
		pending:    make([]int16, 0, frameSize*2),
		packet:     make([]byte, 4000), // Max Opus packet size
	}, nil
}

// Encode appends samples and emits one packet per complete 20ms frame
func (e *OpusEncoder) Encode(samples []int16) ([][]byte, error) {
	e.pending = append(e.pending, samples...)

	var packets [][]byte
	for len(e.pending) >= e.frameSize {
		n, err := e.encoder.Encode(e.pending[:e.frameSize], e.packet)
		if err != nil {
			return packets, fmt.Errorf("opus encode error: %w", err)
		}

		packet := make([]byte, n)
		copy(packet, e.packet[:n])
		packets = append(packets, packet)

		e.pending = append(e.pending[:0], e.pending[e.frameSize:]...)
	}

	return packets, nil
}

// Codec returns "opus"
func (e *OpusEncoder) Codec() string {
	return "opus"
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	e.pending = e.pending[:0]
	return nil
}
