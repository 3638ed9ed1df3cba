// ABOUTME: Transport envelopes for encoded audio frames
// ABOUTME: Wraps frames as base64 JSON text or as binary messages with a small header
package protocol

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Binary message types
const (
	BinaryPCM  byte = 0
	BinaryOpus byte = 1

	binaryHeaderSize = 9
)

// ErrNotAudio is returned by Unwrap for a well-formed message that is not audio
var ErrNotAudio = errors.New("not an audio message")

// Frame is one encoded unit of audio
type Frame struct {
	Codec      string
	SampleRate int
	Seq        uint64
	Data       []byte
}

// Packet is a frame in its transport form
type Packet struct {
	Binary bool
	Data   []byte
}

// Envelope selects how frames are wrapped for the transport
type Envelope int

const (
	// EnvelopeText wraps frames as JSON with base64 data
	EnvelopeText Envelope = iota

	// EnvelopeBinary wraps frames as [type][uint64 BE seq][payload]
	EnvelopeBinary
)

// ParseEnvelope parses "text" or "binary"
func ParseEnvelope(s string) (Envelope, error) {
	switch s {
	case "text", "":
		return EnvelopeText, nil
	case "binary":
		return EnvelopeBinary, nil
	default:
		return EnvelopeText, fmt.Errorf("unknown envelope: %s", s)
	}
}

func (e Envelope) String() string {
	if e == EnvelopeBinary {
		return "binary"
	}
	return "text"
}

// Wrap produces the transport packet for f
func (e Envelope) Wrap(f Frame) (Packet, error) {
	if e == EnvelopeBinary {
		var typ byte
		switch f.Codec {
		case "pcm", "":
			typ = BinaryPCM
		case "opus":
			typ = BinaryOpus
		default:
			return Packet{}, fmt.Errorf("codec %s has no binary message type", f.Codec)
		}

		data := make([]byte, binaryHeaderSize+len(f.Data))
		data[0] = typ
		binary.BigEndian.PutUint64(data[1:binaryHeaderSize], f.Seq)
		copy(data[binaryHeaderSize:], f.Data)
		return Packet{Binary: true, Data: data}, nil
	}

	codec := f.Codec
	if codec == "" {
		codec = "pcm"
	}
	data, err := json.Marshal(Message{
		Type:       TypeAudio,
		Data:       base64.StdEncoding.EncodeToString(f.Data),
		SampleRate: f.SampleRate,
		Codec:      codec,
		Seq:        f.Seq,
	})
	if err != nil {
		return Packet{}, fmt.Errorf("failed to marshal audio message: %w", err)
	}
	return Packet{Data: data}, nil
}

// Unwrap extracts the frame from a packet in either envelope.
// sampleRate is assumed when the packet does not carry one.
func Unwrap(p Packet, sampleRate int) (Frame, error) {
	if p.Binary {
		return unwrapBinary(p.Data, sampleRate)
	}

	msg, err := ParseMessage(p.Data)
	if err != nil {
		return Frame{}, err
	}
	return FrameFromMessage(msg, sampleRate)
}

// FrameFromMessage extracts the frame from a parsed audio message
func FrameFromMessage(msg Message, sampleRate int) (Frame, error) {
	if msg.Type != TypeAudio {
		return Frame{}, fmt.Errorf("%w: %s", ErrNotAudio, msg.Type)
	}

	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return Frame{}, fmt.Errorf("invalid base64 audio data: %w", err)
	}

	f := Frame{
		Codec:      msg.Codec,
		SampleRate: msg.SampleRate,
		Seq:        msg.Seq,
		Data:       data,
	}
	if f.Codec == "" {
		f.Codec = "pcm"
	}
	if f.SampleRate == 0 {
		f.SampleRate = sampleRate
	}
	return f, nil
}

func unwrapBinary(data []byte, sampleRate int) (Frame, error) {
	if len(data) < binaryHeaderSize {
		return Frame{}, fmt.Errorf("invalid binary message: too short (%d bytes)", len(data))
	}

	f := Frame{
		SampleRate: sampleRate,
		Seq:        binary.BigEndian.Uint64(data[1:binaryHeaderSize]),
		Data:       data[binaryHeaderSize:],
	}

	switch data[0] {
	case BinaryPCM:
		f.Codec = "pcm"
	case BinaryOpus:
		f.Codec = "opus"
	default:
		return Frame{}, fmt.Errorf("unknown binary message type: %d", data[0])
	}
	return f, nil
}
