// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts a continuous native-rate stream to a fixed target rate
// Package resample provides streaming sample rate conversion.
//
// A Resampler is fed consecutive blocks of normalized mono samples and keeps its
// fractional phase between calls, so block boundaries never drop or repeat a
// sample. Output is 16-bit PCM.
//
// Example:
//
//	r, err := resample.New(48000, 16000)
//	if err != nil {
//	    return err
//	}
//	pcm := r.Process(block) // len(pcm) ~ len(block)/3
package resample
