// ABOUTME: Sample-accurate playback timeline
// ABOUTME: Renders buffers scheduled at absolute clock positions through the gain stage
package output

import (
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// Position is a point on the local audio clock, in sample frames at the
// timeline's rate
type Position int64

// scheduled is one buffer placed on the timeline
type scheduled struct {
	start   Position
	samples []float32
	onEnded func()
}

func (s *scheduled) end() Position {
	return s.start + Position(len(s.samples))
}

// Timeline is the local audio clock and mixer. An output device pulls
// rendered audio from it; the clock advances by exactly the number of frames
// rendered, so it only moves while the device is consuming audio. Silence is
// rendered where nothing is scheduled.
type Timeline struct {
	rate int
	gain *Gain

	clock  atomic.Int64
	closed atomic.Bool

	mu      sync.Mutex
	pending []*scheduled

	// scratch is used by Read; a timeline has a single reader
	scratch []float32
}

// NewTimeline creates a timeline at the given rate. A nil gain means unity.
func NewTimeline(sampleRate int, gain *Gain) *Timeline {
	if gain == nil {
		gain = NewGain(1)
	}
	return &Timeline{
		rate: sampleRate,
		gain: gain,
	}
}

// Now returns the current clock position
func (t *Timeline) Now() Position {
	return Position(t.clock.Load())
}

// Rate returns the timeline sample rate
func (t *Timeline) Rate() int {
	return t.rate
}

// Gain returns the gain stage applied during rendering
func (t *Timeline) Gain() *Gain {
	return t.gain
}

// Duration converts a position span to wall time at the timeline rate
func (t *Timeline) Duration(p Position) time.Duration {
	return audio.FramesToDuration(int64(p), t.rate)
}

// Schedule places samples on the timeline starting at at. onEnded, if not
// nil, is called once the last sample has been rendered, or when the
// timeline is closed. A start already in the past renders only the part of
// the buffer that is still ahead of the clock.
func (t *Timeline) Schedule(samples []float32, at Position, onEnded func()) {
	if t.closed.Load() {
		if onEnded != nil {
			onEnded()
		}
		return
	}

	s := &scheduled{start: at, samples: samples, onEnded: onEnded}

	t.mu.Lock()
	i := sort.Search(len(t.pending), func(i int) bool {
		return t.pending[i].start > at
	})
	t.pending = append(t.pending, nil)
	copy(t.pending[i+1:], t.pending[i:])
	t.pending[i] = s
	t.mu.Unlock()
}

// Pending returns the number of buffers not yet fully rendered
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Render mixes the next len(out) frames into out, applies the gain and
// advances the clock
func (t *Timeline) Render(out []float32) {
	for i := range out {
		out[i] = 0
	}
	n := Position(len(out))
	if n == 0 {
		return
	}

	var ended []func()

	t.mu.Lock()
	now := Position(t.clock.Load())
	limit := now + n
	keep := t.pending[:0]
	for _, s := range t.pending {
		if s.start < limit {
			from := s.start
			if from < now {
				from = now
			}
			to := s.end()
			if to > limit {
				to = limit
			}
			for p := from; p < to; p++ {
				out[p-now] += s.samples[p-s.start]
			}
		}

		if s.end() <= limit {
			if s.onEnded != nil {
				ended = append(ended, s.onEnded)
			}
			continue
		}
		keep = append(keep, s)
	}
	for i := len(keep); i < len(t.pending); i++ {
		t.pending[i] = nil
	}
	t.pending = keep
	t.clock.Store(int64(limit))
	t.mu.Unlock()

	if g := float32(t.gain.Value()); g != 1 {
		for i := range out {
			out[i] *= g
		}
	}

	for _, fn := range ended {
		fn()
	}
}

// Read renders mono 16-bit little-endian PCM into p. It implements
// io.Reader for pull-based output devices and returns io.EOF once the
// timeline is closed.
func (t *Timeline) Read(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, io.EOF
	}

	frames := len(p) / 2
	if cap(t.scratch) < frames {
		t.scratch = make([]float32, frames)
	}
	buf := t.scratch[:frames]

	t.Render(buf)
	for i, s := range buf {
		v := uint16(audio.FloatToInt16(s))
		p[i*2] = byte(v)
		p[i*2+1] = byte(v >> 8)
	}
	return frames * 2, nil
}

// Close drops everything scheduled and ends the stream. Pending onEnded
// callbacks are invoked. Safe to call more than once.
func (t *Timeline) Close() {
	if t.closed.Swap(true) {
		return
	}

	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, s := range pending {
		if s.onEnded != nil {
			s.onEnded()
		}
	}
}
