// ABOUTME: Tests for narration playback
// ABOUTME: Tests lazy device open, decode failures, volume, activity and stop semantics
package voice

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Resonate-Protocol/voicebridge/pkg/audio"
	"github.com/Resonate-Protocol/voicebridge/pkg/audio/output"
	"github.com/Resonate-Protocol/voicebridge/pkg/protocol"
)

type fakeOutput struct {
	mu       sync.Mutex
	openErr  error
	opens    int
	closes   int
	timeline *output.Timeline
}

func (o *fakeOutput) Open(t *output.Timeline) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.openErr != nil {
		return o.openErr
	}
	o.opens++
	o.timeline = t
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}

func (o *fakeOutput) render(n int) []float32 {
	o.mu.Lock()
	tl := o.timeline
	o.mu.Unlock()
	out := make([]float32, n)
	tl.Render(out)
	return out
}

func pcmPacket(t *testing.T, env protocol.Envelope, seq uint64, n int, value int16) protocol.Packet {
	t.Helper()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	data := make([]byte, n*2)
	audio.PutInt16LE(data, samples)

	pkt, err := env.Wrap(protocol.Frame{Codec: "pcm", SampleRate: 24000, Seq: seq, Data: data})
	if err != nil {
		t.Fatalf("failed to wrap frame: %v", err)
	}
	return pkt
}

func TestPlaybackDefaults(t *testing.T) {
	p := NewPlayback(PlaybackConfig{Device: &fakeOutput{}})

	if p.Volume() != 1 {
		t.Errorf("expected default volume 1, got %v", p.Volume())
	}
	if p.config.Tolerance.Milliseconds() != 50 {
		t.Errorf("expected 50ms tolerance, got %v", p.config.Tolerance)
	}
	if p.config.SampleRate != 24000 {
		t.Errorf("expected 24000 Hz, got %d", p.config.SampleRate)
	}
	if p.IsPlaying() {
		t.Error("expected not playing initially")
	}
}

func TestPlaybackInitialVolume(t *testing.T) {
	zero, half := 0.0, 0.5
	tests := []struct {
		name   string
		volume *float64
		want   float64
	}{
		{"unset", nil, 1},
		{"silent", &zero, 0},
		{"half", &half, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlayback(PlaybackConfig{Device: &fakeOutput{}, Volume: tt.volume})
			if p.Volume() != tt.want {
				t.Errorf("expected volume %v, got %v", tt.want, p.Volume())
			}
		})
	}
}

func TestPlaybackOpensDeviceOnFirstFrame(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	// a malformed frame does not open the device
	p.OnPacket(protocol.Packet{Data: []byte(`{"type":"audio","data":"AAEC"}`)})
	if dev.opens != 0 {
		t.Fatal("expected device to stay closed after a malformed frame")
	}

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 2400, 1000))
	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 2400, 1000))

	if dev.opens != 1 {
		t.Errorf("expected device opened once, got %d", dev.opens)
	}
	if !p.IsPlaying() {
		t.Error("expected playing after frames scheduled")
	}
}

func TestPlaybackDecodeErrorLeavesScheduleUntouched(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 2400, 1000))
	before := p.sched.Next()

	bad := []protocol.Packet{
		{Data: []byte(`{"type":"audio","data":"AAEC","sampleRate":24000}`)}, // 3 bytes
		{Data: []byte(`{"type":"audio","data":"!!!","sampleRate":24000}`)},
		{Data: []byte(`{"type":"audio","data":"AAAA","sampleRate":16000}`)},
		{Data: []byte(`not json`)},
		{Binary: true, Data: []byte{0, 1}},
		{Data: []byte(`{"type":"audio","data":"","sampleRate":24000}`)},
	}
	for _, pkt := range bad {
		p.OnPacket(pkt)
	}

	if p.sched.Next() != before {
		t.Errorf("expected next start %d unchanged, got %d", before, p.sched.Next())
	}

	stats := p.Stats()
	if stats.DecodeErrors != int64(len(bad)) {
		t.Errorf("expected %d decode errors, got %d", len(bad), stats.DecodeErrors)
	}

	var slot Slot
	p.config.OnFrame = func(s Slot) { slot = s }
	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 2400, 1000))
	if slot.Start != before {
		t.Errorf("expected next frame to start at %d, got %d", before, slot.Start)
	}
}

func TestPlaybackDecodeErrorType(t *testing.T) {
	p := NewPlayback(PlaybackConfig{Device: &fakeOutput{}})
	defer p.Stop()

	_, err := p.decodeLocked(protocol.Frame{Codec: "pcm", SampleRate: 24000, Seq: 9, Data: []byte{1, 2, 3}})

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decErr.Seq != 9 {
		t.Errorf("expected seq 9, got %d", decErr.Seq)
	}
}

func TestPlaybackBinaryEnvelope(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeBinary, 1, 240, 16384))

	out := dev.render(240)
	if out[0] != 0.5 || out[239] != 0.5 {
		t.Errorf("expected samples at 0.5, got %v and %v", out[0], out[239])
	}
}

func TestPlaybackVolumeAppliesToScheduledAudio(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 480, 16384))

	first := dev.render(240)
	if first[0] != 0.5 {
		t.Fatalf("expected 0.5 at full volume, got %v", first[0])
	}

	// change volume with audio already scheduled
	p.SetVolume(0.5)
	second := dev.render(240)
	if math.Abs(float64(second[0])-0.25) > 1e-6 {
		t.Errorf("expected 0.25 after volume change, got %v", second[0])
	}
}

func TestPlaybackSetVolumeClamps(t *testing.T) {
	p := NewPlayback(PlaybackConfig{Device: &fakeOutput{}})

	tests := []struct {
		in, want float64
	}{
		{0.3, 0.3},
		{1.5, 1},
		{-0.2, 0},
		{math.NaN(), 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := p.SetVolume(tt.in); got != tt.want {
			t.Errorf("SetVolume(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if p.Volume() != tt.want {
			t.Errorf("Volume() after SetVolume(%v) = %v", tt.in, p.Volume())
		}
	}
}

func TestPlaybackActivityClearsWhenDrained(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 2400, 1000))
	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 2400, 1000))

	dev.render(2400)
	if !p.IsPlaying() {
		t.Error("expected playing with a frame still queued")
	}

	dev.render(2400)
	if p.IsPlaying() {
		t.Error("expected not playing after the queue drained")
	}
}

func TestPlaybackUnderrunStartsAtNow(t *testing.T) {
	dev := &fakeOutput{}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	var slots []Slot
	p.config.OnFrame = func(s Slot) { slots = append(slots, s) }

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 2400, 1000))
	dev.render(4800)
	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 2400, 1000))

	if slots[1].Start != 4800 {
		t.Errorf("expected late frame at 4800, got %d", slots[1].Start)
	}
	if p.Stats().Underruns != 1 {
		t.Errorf("expected 1 underrun, got %d", p.Stats().Underruns)
	}
}

func TestPlaybackDeviceErrorRetries(t *testing.T) {
	dev := &fakeOutput{openErr: errors.New("no output device")}
	p := NewPlayback(PlaybackConfig{Device: dev})
	defer p.Stop()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 240, 1000))
	if p.Stats().DeviceErrors != 1 {
		t.Fatalf("expected 1 device error, got %d", p.Stats().DeviceErrors)
	}
	if p.IsPlaying() {
		t.Error("expected not playing without a device")
	}

	dev.mu.Lock()
	dev.openErr = nil
	dev.mu.Unlock()

	p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 240, 1000))
	if dev.opens != 1 {
		t.Errorf("expected device opened on retry, got %d opens", dev.opens)
	}
	if p.Stats().Scheduled != 1 {
		t.Errorf("expected 1 scheduled frame, got %d", p.Stats().Scheduled)
	}
}

func TestPlaybackStop(t *testing.T) {
	t.Run("before first frame", func(t *testing.T) {
		dev := &fakeOutput{}
		p := NewPlayback(PlaybackConfig{Device: dev})
		p.Stop()
		p.Stop()
		if dev.closes != 0 {
			t.Errorf("expected unopened device left alone, got %d closes", dev.closes)
		}
	})

	t.Run("after frames", func(t *testing.T) {
		dev := &fakeOutput{}
		p := NewPlayback(PlaybackConfig{Device: dev})
		p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 1, 2400, 1000))

		p.Stop()
		p.Stop()

		if dev.closes != 1 {
			t.Errorf("expected device closed once, got %d", dev.closes)
		}
		if p.IsPlaying() {
			t.Error("expected not playing after stop")
		}

		received := p.Stats().Received
		p.OnPacket(pcmPacket(t, protocol.EnvelopeText, 2, 2400, 1000))
		p.OnPacket(protocol.Packet{Data: []byte("garbage")})

		stats := p.Stats()
		if stats.Received != received {
			t.Error("expected frames after stop to be ignored")
		}
		if stats.Dropped != 2 {
			t.Errorf("expected 2 dropped frames, got %d", stats.Dropped)
		}
		if dev.opens != 1 {
			t.Error("expected no reopen after stop")
		}
	})
}
