// ABOUTME: Unit tests for Opus encoder
// ABOUTME: Tests frame buffering and Opus packet output
package encode

import (
	"strings"
	"testing"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name        string
		format      audio.Format
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid Opus 16kHz mono",
			format:  audio.CaptureFormat("opus"),
			wantErr: false,
		},
		{
			name:        "invalid codec",
			format:      audio.CaptureFormat("pcm"),
			wantErr:     true,
			errContains: "invalid codec",
		},
		{
			name: "unsupported rate",
			format: audio.Format{
				Codec:      "opus",
				SampleRate: 44100,
				Channels:   1,
				BitDepth:   16,
			},
			wantErr:     true,
			errContains: "failed to create opus encoder",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoder, err := NewOpus(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewOpus() expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewOpus() error = %v, want error containing %v", err, tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("NewOpus() unexpected error = %v", err)
				}
				if encoder == nil {
					t.Errorf("NewOpus() returned nil encoder")
				}
				if encoder != nil {
					encoder.Close()
				}
			}
		})
	}
}

func TestOpusEncoder_BuffersPartialFrames(t *testing.T) {
	encoder, err := NewOpus(audio.CaptureFormat("opus"))
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	// 20ms at 16kHz is 320 samples
	packets, err := encoder.Encode(make([]int16, 200))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if len(packets) != 0 {
		t.Fatalf("Encode() returned %d packets for a partial frame, want 0", len(packets))
	}

	samples := make([]int16, 760)
	for i := range samples {
		samples[i] = int16((i % 64) * 256)
	}

	packets, err = encoder.Encode(samples)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	// 200 + 760 = 960 samples, three full frames
	if len(packets) != 3 {
		t.Fatalf("Encode() returned %d packets, want 3", len(packets))
	}
	for i, p := range packets {
		if len(p) == 0 || len(p) > 4000 {
			t.Errorf("packet %d has invalid size %d", i, len(p))
		}
	}
}

func TestOpusEncoder_EncodeSilence(t *testing.T) {
	encoder, err := NewOpus(audio.CaptureFormat("opus"))
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	defer encoder.Close()

	packets, err := encoder.Encode(make([]int16, 320))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	// Even silence should produce valid Opus packets
	if len(packets) != 1 || len(packets[0]) == 0 {
		t.Errorf("Encode() returned %v for silence", packets)
	}
}
