// ABOUTME: Participant configuration
// ABOUTME: Loads YAML settings over defaults and validates them with struct tags
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the participant configuration
type Config struct {
	// Server is the relay host:port; empty means discover via mDNS
	Server   string         `yaml:"server" validate:"omitempty,hostname_port"`
	Name     string         `yaml:"name" validate:"required,max=64"`
	TUI      bool           `yaml:"tui"`
	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
	Liveness LivenessConfig `yaml:"liveness"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CaptureConfig selects and tunes the microphone
type CaptureConfig struct {
	Source           string  `yaml:"source" validate:"oneof=device tone file"`
	File             string  `yaml:"file" validate:"required_if=Source file"`
	Loop             bool    `yaml:"loop"`
	ToneHz           float64 `yaml:"tone_hz" validate:"gt=0,lte=8000"`
	ToneRate         int     `yaml:"tone_rate" validate:"gte=8000,lte=192000"`
	Codec            string  `yaml:"codec" validate:"oneof=pcm opus"`
	Envelope         string  `yaml:"envelope" validate:"oneof=text binary"`
	Muted            bool    `yaml:"muted"`
	BlockMs          int     `yaml:"block_ms" validate:"gte=0,lte=200"`
	OutboxFrames     int     `yaml:"outbox_frames" validate:"gte=1,lte=1024"`
	EchoCancellation bool    `yaml:"echo_cancellation"`
	NoiseSuppression bool    `yaml:"noise_suppression"`
	AutoGainControl  bool    `yaml:"auto_gain_control"`
}

// PlaybackConfig tunes narration playback
type PlaybackConfig struct {
	Backend   string        `yaml:"backend" validate:"oneof=oto malgo"`
	Volume    float64       `yaml:"volume" validate:"gte=0,lte=1"`
	Tolerance time.Duration `yaml:"tolerance" validate:"gte=0,lte=1s"`
}

// LivenessConfig tunes the narrator monitor
type LivenessConfig struct {
	StallTimeout  time.Duration `yaml:"stall_timeout" validate:"gt=0"`
	ContentWindow time.Duration `yaml:"content_window" validate:"gt=0"`
	PollInterval  time.Duration `yaml:"poll_interval" validate:"gt=0"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the built-in configuration
func Default() *Config {
	hostname, _ := os.Hostname()
	name := "Voicebridge Participant"
	if hostname != "" {
		name = fmt.Sprintf("%s-voice", hostname)
	}

	return &Config{
		Name: name,
		TUI:  true,
		Capture: CaptureConfig{
			Source:           "device",
			ToneHz:           440,
			ToneRate:         48000,
			Codec:            "pcm",
			Envelope:         "text",
			OutboxFrames:     32,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		Playback: PlaybackConfig{
			Backend:   "oto",
			Volume:    1,
			Tolerance: 50 * time.Millisecond,
		},
		Liveness: LivenessConfig{
			StallTimeout:  15 * time.Second,
			ContentWindow: 1500 * time.Millisecond,
			PollInterval:  250 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
			File:  "voicebridge.log",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, Validate(cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags. It returns a joined error
// listing every failure.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}

	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, fmt.Errorf("config: %s %s", fieldPath(e), formatValidationMessage(e)))
	}
	return errors.Join(errs...)
}

// fieldPath turns Config.Capture.ToneHz into capture.tone_hz
func fieldPath(e validator.FieldError) string {
	parts := strings.Split(e.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// formatValidationMessage creates a human-readable message from a validator error
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_port":
		return "must be host:port"
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

// SlogLevel returns the configured level as a slog.Level
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
