// ABOUTME: Voice relay message type definitions
// ABOUTME: Defines the JSON text messages exchanged with the relay
package protocol

import (
	"encoding/json"
	"fmt"
)

// Message types
const (
	TypeAudio      = "audio"
	TypeHello      = "hello"
	TypeWelcome    = "welcome"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeTranscript = "transcript"
	TypeError      = "error"
)

// Message is the top-level wrapper for all text messages.
// Audio messages carry their payload flat in Data (base64) so they stay
// compatible with browser participants.
type Message struct {
	Type       string          `json:"type"`
	Data       string          `json:"data,omitempty"`
	SampleRate int             `json:"sampleRate,omitempty"`
	Codec      string          `json:"codec,omitempty"`
	Seq        uint64          `json:"seq,omitempty"`
	Text       string          `json:"text,omitempty"`
	Speaker    string          `json:"speaker,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Hello is sent by a participant right after connecting
type Hello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	DeviceInfo DeviceInfo  `json:"device_info"`
	Capture    AudioFormat `json:"capture"`
	Playback   AudioFormat `json:"playback"`
}

// Welcome is the relay's answer to Hello
type Welcome struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// AudioFormat describes one direction of the audio stream
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// NewMessage builds a message of type typ with payload marshaled into Payload
func NewMessage(typ string, payload interface{}) (Message, error) {
	msg := Message{Type: typ}
	if payload == nil {
		return msg, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return msg, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	msg.Payload = raw
	return msg, nil
}

// DecodePayload unmarshals the message payload into v
func (m Message) DecodePayload(v interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", m.Type, err)
	}
	return nil
}

// ParseMessage unmarshals a text message
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return msg, fmt.Errorf("message has no type")
	}
	return msg, nil
}

// Marshal encodes the message as JSON text
func (m Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.Type, err)
	}
	return data, nil
}
