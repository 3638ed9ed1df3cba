// ABOUTME: Voice relay wire protocol package
// ABOUTME: Defines text messages and audio frame envelopes
// Package protocol implements the voice relay wire protocol.
//
// Audio frames travel either as JSON text messages with base64 data:
//
//	{"type":"audio","data":"AAEC...","sampleRate":16000,"codec":"pcm","seq":12}
//
// or as binary messages with a 9-byte header (type byte, big-endian uint64
// sequence) followed by the payload. Other text messages (hello, ping, pong,
// transcript) share the Message struct.
//
// Example:
//
//	pkt, err := protocol.EnvelopeText.Wrap(protocol.Frame{Codec: "pcm", SampleRate: 16000, Data: pcm})
//	frame, err := protocol.Unwrap(pkt, 24000)
package protocol
