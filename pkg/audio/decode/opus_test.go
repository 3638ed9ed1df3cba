// ABOUTME: Tests for Opus decoder
// ABOUTME: Tests Opus decoder creation and packet decoding
package decode

import (
	"errors"
	"testing"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

func TestNewOpus(t *testing.T) {
	decoder, err := NewOpus(audio.PlaybackFormat("opus"))
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestNewOpus_InvalidCodec(t *testing.T) {
	decoder, err := NewOpus(audio.PlaybackFormat("pcm"))
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}

	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for Opus decoder: pcm"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestOpusDecode_Packet(t *testing.T) {
	enc, err := opus.NewEncoder(audio.PlaybackRate, 1, opus.AppVoIP)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}

	// 20ms at 24kHz
	pcm := make([]int16, 480)
	for i := range pcm {
		pcm[i] = int16((i % 48) * 400)
	}
	packet := make([]byte, 4000)
	n, err := enc.Encode(pcm, packet)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoder, _ := NewOpus(audio.PlaybackFormat("opus"))
	samples, err := decoder.Decode(packet[:n])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 480 {
		t.Errorf("expected 480 samples, got %d", len(samples))
	}
}

func TestOpusDecode_Empty(t *testing.T) {
	decoder, _ := NewOpus(audio.PlaybackFormat("opus"))
	if _, err := decoder.Decode(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("expected ErrEmptyFrame, got %v", err)
	}
}
