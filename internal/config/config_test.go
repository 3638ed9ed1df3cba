// ABOUTME: Tests for participant configuration
// ABOUTME: Tests defaults, YAML overrides, unknown fields and validation messages
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	if cfg.Playback.Volume != 1 {
		t.Errorf("expected volume 1, got %v", cfg.Playback.Volume)
	}
	if cfg.Playback.Tolerance != 50*time.Millisecond {
		t.Errorf("expected 50ms tolerance, got %v", cfg.Playback.Tolerance)
	}
	if cfg.Liveness.StallTimeout != 15*time.Second {
		t.Errorf("expected 15s stall timeout, got %v", cfg.Liveness.StallTimeout)
	}
	if cfg.Capture.Codec != "pcm" || cfg.Capture.Envelope != "text" {
		t.Errorf("unexpected wire defaults: %s/%s", cfg.Capture.Codec, cfg.Capture.Envelope)
	}
	if !cfg.Capture.EchoCancellation || !cfg.Capture.NoiseSuppression || !cfg.Capture.AutoGainControl {
		t.Error("expected processing constraints requested by default")
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	yamlDoc := `
server: relay.local:8927
name: Alice
capture:
  source: tone
  tone_hz: 220
  envelope: binary
playback:
  volume: 0.4
liveness:
  stall_timeout: 30s
log:
  level: debug
`
	cfg, err := LoadFromReader(strings.NewReader(yamlDoc))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server != "relay.local:8927" {
		t.Errorf("expected server override, got %q", cfg.Server)
	}
	if cfg.Name != "Alice" {
		t.Errorf("expected name Alice, got %q", cfg.Name)
	}
	if cfg.Capture.Source != "tone" || cfg.Capture.ToneHz != 220 {
		t.Errorf("unexpected capture: %+v", cfg.Capture)
	}
	if cfg.Capture.Envelope != "binary" {
		t.Errorf("expected binary envelope, got %s", cfg.Capture.Envelope)
	}
	if cfg.Playback.Volume != 0.4 {
		t.Errorf("expected volume 0.4, got %v", cfg.Playback.Volume)
	}
	if cfg.Liveness.StallTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Liveness.StallTimeout)
	}
	// untouched fields keep defaults
	if cfg.Capture.Codec != "pcm" {
		t.Errorf("expected default codec kept, got %s", cfg.Capture.Codec)
	}
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Log.SlogLevel())
	}
}

func TestLoadFromReaderEmpty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("expected empty document to load defaults, got %v", err)
	}
	if cfg.Capture.Source != "device" {
		t.Errorf("expected default source, got %s", cfg.Capture.Source)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("volume: 0.5\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"volume too high", func(c *Config) { c.Playback.Volume = 1.5 }, "playback.volume must be at most 1"},
		{"negative volume", func(c *Config) { c.Playback.Volume = -0.1 }, "playback.volume must be at least 0"},
		{"bad codec", func(c *Config) { c.Capture.Codec = "mp3" }, "capture.codec must be one of: pcm opus"},
		{"bad envelope", func(c *Config) { c.Capture.Envelope = "xml" }, "capture.envelope must be one of"},
		{"file source without file", func(c *Config) { c.Capture.Source = "file" }, "capture.file is required"},
		{"empty name", func(c *Config) { c.Name = "" }, "name is required"},
		{"zero stall timeout", func(c *Config) { c.Liveness.StallTimeout = 0 }, "liveness.stall_timeout must be greater than 0"},
		{"bad server", func(c *Config) { c.Server = "no-port" }, "server must be host:port"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Playback.Volume = 2
	cfg.Capture.Codec = "flac"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "playback.volume") || !strings.Contains(msg, "capture.codec") {
		t.Errorf("expected both failures reported, got %q", msg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicebridge.yaml")
	if err := os.WriteFile(path, []byte("name: Bob\nplayback:\n  backend: malgo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Name != "Bob" || cfg.Playback.Backend != "malgo" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := Load(""); err != nil {
		t.Errorf("expected defaults for empty path, got %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
