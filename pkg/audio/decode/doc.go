// ABOUTME: Audio decoder package for playback frames
// ABOUTME: Provides Decoder interface and implementations for PCM, Opus
// Package decode provides playback frame decoders.
//
// Supports: PCM (16-bit little-endian) and Opus.
//
// All decoders implement the Decoder interface and output float32 samples
// normalized by 32768. Malformed frames return an error and leave the
// decoder usable for the next frame.
//
// Example:
//
//	decoder, err := decode.New(audio.PlaybackFormat("pcm"))
//	samples, err := decoder.Decode(payload)
package decode
