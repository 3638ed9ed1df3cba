// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays a Timeline through a persistent oto player
package output

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto only allows one context per process; it is created on first use and
// suspended rather than destroyed between sessions
var (
	otoMu   sync.Mutex
	otoCtx  *oto.Context
	otoRate int
)

// Oto output implementation using oto library
type Oto struct {
	mu       sync.Mutex
	logger   *slog.Logger
	player   *oto.Player
	timeline *Timeline
}

// NewOto creates a new Oto output
func NewOto(logger *slog.Logger) *Oto {
	return &Oto{logger: logger}
}

// Open initializes the output device and starts pulling from t
func (o *Oto) Open(t *Timeline) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("output already open")
	}

	ctx, err := sharedContext(t.Rate())
	if err != nil {
		return err
	}

	// Create persistent player that reads from the timeline
	o.player = ctx.NewPlayer(t)
	o.player.Play()
	o.timeline = t

	o.logger.Info("audio output initialized", "backend", "oto", "sample_rate", t.Rate())

	return nil
}

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		// If format changed, we can't reinitialize oto
		if otoRate != sampleRate {
			return nil, fmt.Errorf("oto context already running at %dHz, cannot open at %dHz", otoRate, sampleRate)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   40 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	otoCtx = ctx
	otoRate = sampleRate
	return ctx, nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.timeline != nil {
		o.timeline.Close()
		o.timeline = nil
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.logger.Warn("oto player close failed", "error", err)
		}
		o.player = nil

		otoMu.Lock()
		if otoCtx != nil {
			if err := otoCtx.Suspend(); err != nil {
				o.logger.Warn("oto context suspend failed", "error", err)
			}
		}
		otoMu.Unlock()
	}
	return nil
}
