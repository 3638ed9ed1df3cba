// ABOUTME: Audio input package for microphone capture
// ABOUTME: Provides capture Driver shims for malgo, synthetic tones and audio files
// Package input provides capture drivers.
//
// A Driver opens a Device that delivers mono float32 blocks at its native rate
// through a BlockFunc invoked on the audio thread. Drivers:
//   - Malgo: the default microphone through miniaudio
//   - Tone: a synthetic sine wave, paced in real time
//   - File: an MP3 or FLAC file, paced in real time
//
// Example:
//
//	dev, err := input.NewMalgo().Open(input.Config{}, func(block []float32) {
//	    // resample and encode
//	})
//	rate := dev.SampleRate()
//	err = dev.Start()
//	defer dev.Close()
package input
