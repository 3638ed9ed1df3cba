// ABOUTME: Typed errors for the voice pipeline
// ABOUTME: Distinguishes denied consent, device failures and per-frame decode failures
package voice

import (
	"fmt"
)

// PermissionError reports that the user denied microphone access.
// Starting again requires new consent.
type PermissionError struct {
	Cause error
}

func (e *PermissionError) Error() string {
	if e.Cause == nil {
		return "microphone permission denied"
	}
	return fmt.Sprintf("microphone permission denied: %v", e.Cause)
}

func (e *PermissionError) Unwrap() error {
	return e.Cause
}

// DeviceError reports a failure to acquire or initialize an audio device.
// Retrying the start is expected to be safe.
type DeviceError struct {
	Op    string
	Cause error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s failed: %v", e.Op, e.Cause)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// DecodeError reports a malformed playback frame. It is logged and the
// frame dropped; it never reaches callers of the playback API.
type DecodeError struct {
	Seq    uint64
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("decode frame %d: %s", e.Seq, e.Reason)
	}
	return fmt.Sprintf("decode frame %d: %s: %v", e.Seq, e.Reason, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
