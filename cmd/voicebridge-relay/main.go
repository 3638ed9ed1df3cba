// ABOUTME: Entry point for the development voice relay
// ABOUTME: Parses CLI flags and runs the relay until interrupted
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Resonate-Protocol/voicebridge/internal/relay"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

var (
	port      = pflag.Int("port", 8927, "WebSocket relay port")
	name      = pflag.String("name", "", "Relay friendly name (default: hostname-voicebridge-relay)")
	envelope  = pflag.String("envelope", "text", "Narration envelope: text or binary")
	toneHz    = pflag.Float64("tone", 220, "Narration carrier frequency in Hz")
	speakFor  = pflag.Duration("speak", 4*time.Second, "Length of each narrated line")
	pauseFor  = pflag.Duration("pause", 2*time.Second, "Silence between narrated lines")
	logFile   = pflag.String("log-file", "voicebridge-relay.log", "Log file path")
	debug     = pflag.Bool("debug", false, "Enable debug logging")
	noMDNS    = pflag.Bool("no-mdns", false, "Disable mDNS advertisement")
	enableTUI = pflag.Bool("tui", false, "Show the relay TUI instead of streaming logs")
)

func main() {
	pflag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}

	var out io.Writer = io.MultiWriter(os.Stdout, f)
	if *enableTUI {
		out = f
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	env, err := protocol.ParseEnvelope(*envelope)
	if err != nil {
		logger.Error("invalid envelope", "error", err)
		os.Exit(1)
	}

	relayName := *name
	if relayName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		relayName = fmt.Sprintf("%s-voicebridge-relay", hostname)
	}

	logger.Info("starting voicebridge relay", "name", relayName, "port", *port, "log_file", *logFile)

	r, err := relay.New(relay.Config{
		Addr:       fmt.Sprintf(":%d", *port),
		Name:       relayName,
		EnableMDNS: !*noMDNS,
		UseTUI:     *enableTUI,
		Envelope:   env,
		Narration: relay.NarrationConfig{
			Frequency: *toneHz,
			SpeakFor:  *speakFor,
			PauseFor:  *pauseFor,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to create relay", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := r.Run(ctx); err != nil {
		logger.Error("relay error", "error", err)
		os.Exit(1)
	}
}
