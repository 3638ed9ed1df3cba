// ABOUTME: Package voice documentation
// ABOUTME: Real-time capture, playback and liveness for a voice participant
// Package voice implements the participant side of a real-time voice link.
//
// Capture pulls native-rate microphone blocks from an input driver,
// resamples them to 16kHz with a phase that carries across blocks, encodes
// them and hands every frame to a Transmitter. Muting discards frames after
// encoding so the resampler never loses its place.
//
// Playback decodes 24kHz narration frames and schedules each one to start
// exactly where the previous one ended on the output clock, or immediately
// if it arrived late. Volume applies to everything already scheduled.
//
// Monitor classifies the narrator as speaking, idle or stalled.
//
// Example:
//
//	volume := 0.8
//	play := voice.NewPlayback(voice.PlaybackConfig{Volume: &volume})
//	defer play.Stop()
//
//	capture := voice.NewCapture(voice.CaptureConfig{
//		Driver:      input.NewMalgo(),
//		Transmitter: conn,
//	})
//	if err := capture.Start(ctx); err != nil {
//		var perm *voice.PermissionError
//		if errors.As(err, &perm) {
//			// ask the user again
//		}
//		return err
//	}
//	defer capture.Stop()
package voice
