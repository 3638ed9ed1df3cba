// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, the fixed pipeline rates and sample conversion functions
// Package audio provides fundamental audio types and utilities for the voice pipeline.
//
// The pipeline moves mono 16-bit little-endian PCM in two directions at two fixed rates:
//   - CaptureRate (16 kHz): microphone frames sent to the remote service
//   - PlaybackRate (24 kHz): narration frames received for playback
//
// Samples are processed as normalized float32 values in [-1, 1] and converted to
// 16-bit PCM at the edges with asymmetric scaling:
//
//	s := audio.FloatToInt16(0.25)   // 8191
//	f := audio.Int16ToFloat(-32768) // -1.0
package audio
