// ABOUTME: Audio encoder package for encoding capture PCM to wire payloads
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides capture frame encoders.
//
// Supports: PCM (16-bit little-endian, the default wire format) and Opus.
//
// All encoders accept int16 samples and return zero or more payloads per call:
// PCM returns exactly one payload per non-empty block, Opus buffers samples and
// returns one packet per complete 20ms frame.
//
// Example:
//
//	encoder, err := encode.New(audio.CaptureFormat("pcm"))
//	payloads, err := encoder.Encode(samples)
package encode
