// ABOUTME: Tests for voice relay message types
// ABOUTME: Verifies JSON shape of text messages and payload handling
package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHelloMessage(t *testing.T) {
	hello := Hello{
		ClientID: "test-id",
		Name:     "Test Participant",
		DeviceInfo: DeviceInfo{
			ProductName:     "Test Product",
			Manufacturer:    "Test Mfg",
			SoftwareVersion: "0.1.0",
		},
		Capture:  AudioFormat{Codec: "pcm", Channels: 1, SampleRate: 16000, BitDepth: 16},
		Playback: AudioFormat{Codec: "pcm", Channels: 1, SampleRate: 24000, BitDepth: 16},
	}

	msg, err := NewMessage(TypeHello, hello)
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	decoded, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	if decoded.Type != TypeHello {
		t.Errorf("expected type hello, got %s", decoded.Type)
	}

	var got Hello
	if err := decoded.DecodePayload(&got); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if got.ClientID != "test-id" || got.Capture.SampleRate != 16000 || got.Playback.SampleRate != 24000 {
		t.Errorf("unexpected hello payload: %+v", got)
	}
}

func TestAudioMessageFieldNames(t *testing.T) {
	data, err := json.Marshal(Message{Type: TypeAudio, Data: "AAA=", SampleRate: 24000})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	s := string(data)
	for _, want := range []string{`"type":"audio"`, `"data":"AAA="`, `"sampleRate":24000`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
	if strings.Contains(s, "payload") {
		t.Errorf("expected empty payload to be omitted: %s", s)
	}
}

func TestPingHasNoPayload(t *testing.T) {
	msg, err := NewMessage(TypePing, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := json.Marshal(msg)
	if string(data) != `{"type":"ping"}` {
		t.Errorf("unexpected ping encoding: %s", data)
	}

	if err := msg.DecodePayload(&Welcome{}); err == nil {
		t.Error("expected error decoding missing payload")
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "hello"},
		{"missing type", `{"data":"AAA="}`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.input)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestMessageMarshalTranscript(t *testing.T) {
	data, err := Message{Type: TypeTranscript, Speaker: "Narrator", Text: "The night falls."}.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Speaker != "Narrator" || msg.Text != "The night falls." {
		t.Errorf("unexpected transcript: %+v", msg)
	}
}
