// ABOUTME: Synthetic sine-wave microphone
// ABOUTME: Generates a test tone at an arbitrary native rate for headless runs
package input

import (
	"fmt"
	"math"
)

// Tone is a driver producing a continuous sine wave
type Tone struct {
	Rate      int
	Frequency float64
	Amplitude float64
}

// NewTone creates a tone driver
func NewTone(rate int, frequency, amplitude float64) *Tone {
	return &Tone{Rate: rate, Frequency: frequency, Amplitude: amplitude}
}

// Open creates a paced device emitting the tone
func (t *Tone) Open(cfg Config, onBlock BlockFunc) (Device, error) {
	if t.Rate <= 0 {
		return nil, fmt.Errorf("invalid tone sample rate: %d", t.Rate)
	}
	return newPacedDevice(newToneSource(t.Rate, t.Frequency, t.Amplitude), cfg, onBlock), nil
}

// toneSource generates a phase-continuous sine wave
type toneSource struct {
	rate      int
	step      float64
	amplitude float64
	phase     float64
}

func newToneSource(rate int, frequency, amplitude float64) *toneSource {
	return &toneSource{
		rate:      rate,
		step:      2 * math.Pi * frequency / float64(rate),
		amplitude: amplitude,
	}
}

func (s *toneSource) SampleRate() int {
	return s.rate
}

func (s *toneSource) ReadBlock(dst []float32) (int, error) {
	for i := range dst {
		dst[i] = float32(s.amplitude * math.Sin(s.phase))
		s.phase += s.step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return len(dst), nil
}

func (s *toneSource) Close() error {
	return nil
}
