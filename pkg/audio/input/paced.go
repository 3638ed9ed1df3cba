// ABOUTME: Ticker-paced capture device
// ABOUTME: Emulates a hardware callback for synthetic and file-backed sources
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// blockSource fills dst with mono samples and returns how many it wrote.
// io.EOF ends the stream.
type blockSource interface {
	SampleRate() int
	ReadBlock(dst []float32) (int, error)
	Close() error
}

// pacedDevice delivers blocks from a source at real-time pace
type pacedDevice struct {
	source      blockSource
	onBlock     BlockFunc
	blockFrames int
	logger      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

func newPacedDevice(src blockSource, cfg Config, onBlock BlockFunc) *pacedDevice {
	blockFrames := cfg.BlockFrames
	if blockFrames <= 0 {
		// 10ms blocks
		blockFrames = src.SampleRate() / 100
	}
	return &pacedDevice{
		source:      src,
		onBlock:     onBlock,
		blockFrames: blockFrames,
		logger:      cfg.logger(),
	}
}

func (d *pacedDevice) SampleRate() int {
	return d.source.SampleRate()
}

func (d *pacedDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("capture device closed")
	}
	if d.started {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})
	d.started = true

	go d.run(ctx)
	return nil
}

func (d *pacedDevice) run(ctx context.Context) {
	defer close(d.done)

	period := time.Duration(d.blockFrames) * time.Second / time.Duration(d.source.SampleRate())
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	block := make([]float32, d.blockFrames)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.source.ReadBlock(block)
			if n > 0 {
				d.onBlock(block[:n])
			}
			if errors.Is(err, io.EOF) {
				d.logger.Info("capture source ended")
				return
			}
			if err != nil {
				d.logger.Error("capture source read failed", "error", err)
				return
			}
		}
	}
}

func (d *pacedDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return d.source.Close()
}
