// ABOUTME: Entry point for the voicebridge participant
// ABOUTME: Parses CLI flags over the config file and runs the voice session
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/voicebridge/internal/app"
	"github.com/Resonate-Protocol/voicebridge/internal/config"
	"github.com/Resonate-Protocol/voicebridge/internal/observe"
	"github.com/Resonate-Protocol/voicebridge/internal/ui"
	"github.com/Resonate-Protocol/voicebridge/internal/version"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	configPath   = pflag.String("config", "", "YAML config file")
	serverAddr   = pflag.String("server", "", "Relay address host:port (skip mDNS)")
	name         = pflag.String("name", "", "Participant name (default: hostname-voice)")
	mute         = pflag.Bool("mute", false, "Start with the microphone muted")
	volume       = pflag.Float64("volume", 1, "Narration volume 0-1")
	mic          = pflag.String("mic", "device", "Microphone source: device, tone or file")
	micFile      = pflag.String("mic-file", "", "Audio file (.mp3 or .flac) used as the microphone")
	codec        = pflag.String("codec", "pcm", "Capture codec: pcm or opus")
	envelope     = pflag.String("envelope", "text", "Capture envelope: text or binary")
	logFile      = pflag.String("log-file", "voicebridge.log", "Log file path")
	logLevel     = pflag.String("log-level", "info", "Log level: debug, info, warn or error")
	noTUI        = pflag.Bool("no-tui", false, "Disable TUI, stream logs instead")
	metricsAddr  = pflag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	stallTimeout = pflag.Duration("stall-timeout", 15*time.Second, "Silence before the narrator counts as stalled")
)

func main() {
	pflag.Parse()

	settings, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	f, err := os.OpenFile(settings.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	// The TUI owns the terminal, so logs go only to the file
	var out io.Writer = f
	if !settings.TUI {
		out = io.MultiWriter(os.Stdout, f)
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: settings.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(settings, logger); err != nil {
		logger.Error("participant stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("participant stopped")
}

// loadSettings reads the config file and applies explicitly set flags
func loadSettings() (*config.Config, error) {
	settings, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flags := pflag.CommandLine
	if flags.Changed("server") {
		settings.Server = *serverAddr
	}
	if flags.Changed("name") {
		settings.Name = *name
	}
	if flags.Changed("mute") {
		settings.Capture.Muted = *mute
	}
	if flags.Changed("volume") {
		settings.Playback.Volume = *volume
	}
	if flags.Changed("mic") {
		settings.Capture.Source = *mic
	}
	if flags.Changed("mic-file") {
		settings.Capture.File = *micFile
		if !flags.Changed("mic") {
			settings.Capture.Source = "file"
		}
	}
	if flags.Changed("codec") {
		settings.Capture.Codec = *codec
	}
	if flags.Changed("envelope") {
		settings.Capture.Envelope = *envelope
	}
	if flags.Changed("log-file") {
		settings.Log.File = *logFile
	}
	if flags.Changed("log-level") {
		settings.Log.Level = *logLevel
	}
	if flags.Changed("no-tui") {
		settings.TUI = !*noTUI
	}
	if flags.Changed("metrics-addr") {
		settings.Metrics.Addr = *metricsAddr
	}
	if flags.Changed("stall-timeout") {
		settings.Liveness.StallTimeout = *stallTimeout
	}

	if err := config.Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func run(settings *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.FromSettings(settings, logger)
	if err != nil {
		return err
	}

	logger.Info("starting voicebridge participant",
		"name", settings.Name,
		"version", version.Version,
		"server", settings.Server,
		"mic", settings.Capture.Source)

	if settings.Metrics.Addr != "" {
		mp, shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voicebridge",
			ServiceVersion: version.Version,
		})
		if err != nil {
			return fmt.Errorf("failed to init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("metrics shutdown failed", "error", err)
			}
		}()
		cfg.MeterProvider = mp
	}

	var (
		controls *ui.Controls
		program  *tea.Program
	)
	if settings.TUI {
		controls = ui.NewControls()
		program = ui.Run(controls, settings.Playback.Volume, settings.Capture.Muted)
		cfg.OnStatus = func(msg ui.StatusMsg) { program.Send(msg) }
	}

	participant := app.New(cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return participant.Run(gctx)
	})

	if settings.Metrics.Addr != "" {
		g.Go(func() error {
			return observe.Serve(gctx, settings.Metrics.Addr, logger)
		})
	}

	if program != nil {
		g.Go(func() error {
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("tui failed: %w", err)
			}
			return errQuit
		})
		g.Go(func() error {
			defer program.Quit()
			return handleControls(gctx, participant, controls, logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

// errQuit ends the session when the user quits from the TUI
var errQuit = errors.New("quit requested")

// handleControls applies TUI input to the participant
func handleControls(ctx context.Context, p *app.Participant, controls *ui.Controls, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-controls.Volume:
			p.SetVolume(v)
		case muted := <-controls.Mute:
			logger.Info("microphone mute", "muted", muted)
			p.SetMuted(muted)
		case <-controls.Retry:
			if err := p.StartCapture(); err != nil {
				logger.Warn("microphone retry failed", "error", err)
			}
		case <-controls.Quit:
			logger.Info("received quit from TUI")
			return errQuit
		}
	}
}
