// ABOUTME: Streaming linear resampler for converting capture audio to a fixed rate
// ABOUTME: Carries the fractional phase and a short sample history across blocks
package resample

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
)

// State is the persistent position of a streaming resampler.
// Phase is the source position, relative to the start of the next block,
// at which the next output sample is drawn. It lies in (-Ratio, blockLen);
// a negative phase points into the tail of the previous block.
type State struct {
	Ratio float64
	Phase float64
}

// Resampler performs linear interpolation to convert a mono float stream
// from inputRate to outputRate, producing 16-bit samples
type Resampler struct {
	inputRate  int
	outputRate int
	state      State

	// history holds the most recent input samples across block boundaries,
	// oldest first. Its length covers the deepest negative phase.
	history []float32
}

// New creates a new resampler
func New(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inputRate, outputRate)
	}

	ratio := float64(inputRate) / float64(outputRate)

	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		state:      State{Ratio: ratio},
		history:    make([]float32, int(math.Ceil(ratio))+1),
	}, nil
}

// Process converts one block and returns the output samples.
// It returns nil when the block was consumed entirely by the carried phase.
// The block is not retained.
func (r *Resampler) Process(block []float32) []int16 {
	return r.ProcessInto(nil, block)
}

// ProcessInto is Process with a caller supplied destination, which is
// reused when it has enough capacity
func (r *Resampler) ProcessInto(dst []int16, block []float32) []int16 {
	n := len(block)
	if n == 0 {
		return dst[:0]
	}

	ratio := r.state.Ratio
	phase := r.state.Phase

	outputLength := int(math.Floor((float64(n) - phase) / ratio))
	if outputLength <= 0 {
		r.state.Phase = phase - float64(n)
		r.remember(block)
		return dst[:0]
	}

	if cap(dst) < outputLength {
		dst = make([]int16, outputLength)
	}
	dst = dst[:outputLength]

	for i := 0; i < outputLength; i++ {
		srcIdx := phase + float64(i)*ratio
		idx := int(math.Floor(srcIdx))
		frac := float32(srcIdx - float64(idx))

		s0 := r.sample(block, idx)
		s1 := s0
		if idx+1 < n {
			s1 = r.sample(block, idx+1)
		}

		dst[i] = audio.FloatToInt16(s0 + (s1-s0)*frac)
	}

	r.state.Phase = phase + float64(outputLength)*ratio - float64(n)
	r.remember(block)

	return dst
}

// sample returns the input sample at idx, reading the history for
// negative indices
func (r *Resampler) sample(block []float32, idx int) float32 {
	if idx >= 0 {
		return block[idx]
	}
	h := len(r.history) + idx
	if h < 0 {
		return 0
	}
	return r.history[h]
}

// remember shifts the tail of block into the history
func (r *Resampler) remember(block []float32) {
	h := len(r.history)
	if len(block) >= h {
		copy(r.history, block[len(block)-h:])
		return
	}
	copy(r.history, r.history[len(block):])
	copy(r.history[h-len(block):], block)
}

// State returns the current resample state
func (r *Resampler) State() State {
	return r.state
}

// InputRate returns the native rate this resampler consumes
func (r *Resampler) InputRate() int {
	return r.inputRate
}

// OutputRate returns the rate this resampler produces
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.state.Phase = 0
	for i := range r.history {
		r.history[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output samples a block of
// inputSamples will produce from the current phase
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	n := int(math.Floor((float64(inputSamples) - r.state.Phase) / r.state.Ratio))
	if n < 0 {
		return 0
	}
	return n
}
