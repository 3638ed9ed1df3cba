// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the playback Timeline, gain stage and device backends
// Package output provides audio playback.
//
// A Timeline is the local audio clock: buffers are scheduled at absolute
// frame positions and an output Device (oto or malgo) pulls rendered audio
// from it. The shared Gain is applied to everything the timeline renders.
//
// Example:
//
//	gain := output.NewGain(0.8)
//	tl := output.NewTimeline(24000, gain)
//	dev := output.NewOto(slog.Default())
//	err := dev.Open(tl)
//	tl.Schedule(samples, tl.Now(), nil)
package output
