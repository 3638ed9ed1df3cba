// ABOUTME: Shared playback gain stage
// ABOUTME: Normalized volume stored atomically for lock-free reads from the render thread
package output

import (
	"math"
	"sync/atomic"
)

// Gain is a volume scalar in [0, 1]. Writes are single atomic stores, so the
// render thread never observes a torn value.
type Gain struct {
	bits atomic.Uint64
}

// NewGain creates a gain stage with the given initial volume
func NewGain(volume float64) *Gain {
	g := &Gain{}
	g.Set(volume)
	return g
}

// Set clamps volume to [0, 1], stores it and returns the stored value
func (g *Gain) Set(volume float64) float64 {
	if volume != volume || volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	g.bits.Store(math.Float64bits(volume))
	return volume
}

// Value returns the current volume
func (g *Gain) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}
