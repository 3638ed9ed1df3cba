// ABOUTME: Gapless playback scheduling on the local audio clock
// ABOUTME: Places each decoded buffer at max(now, next start) and tracks activity
package voice

import (
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio/output"
)

// Clock reports the current position of the local audio clock
type Clock interface {
	Now() output.Position
}

// Sink accepts buffers at absolute clock positions. onEnded runs once the
// buffer has finished rendering.
type Sink interface {
	Schedule(samples []float32, at output.Position, onEnded func())
}

// Slot is the span of the clock a buffer was scheduled into
type Slot struct {
	Start output.Position
	End   output.Position
}

// Len returns the slot length in frames
func (s Slot) Len() output.Position {
	return s.End - s.Start
}

// SchedulerStats contains scheduling counters
type SchedulerStats struct {
	Scheduled int64
	Underruns int64
	Frames    int64
}

// Scheduler keeps consecutive buffers contiguous on the audio clock. A
// buffer arriving late starts at the current clock position instead, so
// the gap is heard as silence rather than as a pile-up of late audio.
type Scheduler struct {
	clock     Clock
	sink      Sink
	tolerance output.Position

	mu    sync.Mutex
	next  output.Position
	stats SchedulerStats

	active atomic.Bool
}

// NewScheduler creates a scheduler. tolerance is how much audio may remain
// queued when a buffer ends for playback to still be considered finished.
func NewScheduler(clock Clock, sink Sink, tolerance output.Position) *Scheduler {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Scheduler{
		clock:     clock,
		sink:      sink,
		tolerance: tolerance,
	}
}

// Schedule places samples on the clock and returns where they landed
func (s *Scheduler) Schedule(samples []float32) Slot {
	s.mu.Lock()
	now := s.clock.Now()
	start := s.next
	if now > start {
		if s.stats.Scheduled > 0 {
			s.stats.Underruns++
		}
		start = now
	}
	slot := Slot{Start: start, End: start + output.Position(len(samples))}
	s.next = slot.End
	s.stats.Scheduled++
	s.stats.Frames += int64(len(samples))
	s.active.Store(true)
	s.mu.Unlock()

	s.sink.Schedule(samples, slot.Start, s.ended)
	return slot
}

// ended clears the activity flag once the queue has drained to within
// the tolerance
func (s *Scheduler) ended() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next-s.clock.Now() <= s.tolerance {
		s.active.Store(false)
	}
}

// Active reports whether audio is scheduled or rendering
func (s *Scheduler) Active() bool {
	return s.active.Load()
}

// Next returns the position at which the next buffer would start if it
// arrived in time
func (s *Scheduler) Next() output.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Ahead returns how much scheduled audio is still in front of the clock
func (s *Scheduler) Ahead() output.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ahead := s.next - s.clock.Now(); ahead > 0 {
		return ahead
	}
	return 0
}

// Stats returns scheduling counters
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
