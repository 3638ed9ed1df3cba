// ABOUTME: Tests for voice pipeline error types
// ABOUTME: Tests messages and unwrapping through errors.Is and errors.As
package voice

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"permission", &PermissionError{Cause: cause}, "microphone permission denied: boom"},
		{"permission without cause", &PermissionError{}, "microphone permission denied"},
		{"device", &DeviceError{Op: "open", Cause: cause}, "audio device open failed: boom"},
		{"decode", &DecodeError{Seq: 3, Reason: "malformed payload", Cause: cause}, "decode frame 3: malformed payload: boom"},
		{"decode without cause", &DecodeError{Seq: 4, Reason: "no samples"}, "decode frame 4: no samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := fmt.Errorf("start capture: %w", &DeviceError{Op: "open", Cause: cause})

	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to reach the cause")
	}

	var devErr *DeviceError
	if !errors.As(wrapped, &devErr) {
		t.Fatal("expected errors.As to find DeviceError")
	}
	if !strings.Contains(wrapped.Error(), "underlying") {
		t.Errorf("expected cause in message, got %q", wrapped.Error())
	}

	var perm *PermissionError
	if errors.As(wrapped, &perm) {
		t.Error("expected DeviceError not to match PermissionError")
	}
}
