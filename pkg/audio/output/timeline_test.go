// ABOUTME: Tests for the playback timeline
// ABOUTME: Tests clock advance, contiguous rendering, gain and end notifications
package output

import (
	"encoding/binary"
	"io"
	"testing"
	"time"
)

func constant(v float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestTimelineRendersSilenceAndAdvances(t *testing.T) {
	tl := NewTimeline(24000, nil)
	out := constant(1, 100)

	tl.Render(out)

	for i, v := range out {
		if v != 0 {
			t.Fatalf("frame %d: expected silence, got %v", i, v)
		}
	}
	if tl.Now() != 100 {
		t.Errorf("expected clock 100, got %d", tl.Now())
	}
}

func TestTimelineContiguousBuffers(t *testing.T) {
	tl := NewTimeline(24000, nil)

	tl.Schedule(constant(0.25, 10), 5, nil)
	tl.Schedule(constant(0.5, 10), 15, nil)

	out := make([]float32, 30)
	tl.Render(out)

	for i, v := range out {
		var want float32
		switch {
		case i >= 5 && i < 15:
			want = 0.25
		case i >= 15 && i < 25:
			want = 0.5
		}
		if v != want {
			t.Errorf("frame %d: expected %v, got %v", i, want, v)
		}
	}
	if tl.Pending() != 0 {
		t.Errorf("expected no pending buffers, got %d", tl.Pending())
	}
}

func TestTimelineSpansRenderCalls(t *testing.T) {
	tl := NewTimeline(24000, nil)
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = float32(i) / 10
	}
	tl.Schedule(samples, 2, nil)

	first := make([]float32, 6)
	second := make([]float32, 10)
	tl.Render(first)
	tl.Render(second)

	got := append(first[2:], second[:6]...)
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: expected %v, got %v", i, samples[i], got[i])
		}
	}
}

func TestTimelineLateStartSkipsElapsedPart(t *testing.T) {
	tl := NewTimeline(24000, nil)
	tl.Render(make([]float32, 10))

	samples := []float32{0.1, 0.2, 0.3, 0.4}
	tl.Schedule(samples, 8, nil)

	out := make([]float32, 4)
	tl.Render(out)

	if out[0] != 0.3 || out[1] != 0.4 || out[2] != 0 {
		t.Errorf("expected remaining samples then silence, got %v", out)
	}
}

func TestTimelineAppliesGain(t *testing.T) {
	gain := NewGain(1)
	tl := NewTimeline(24000, gain)
	tl.Schedule(constant(0.8, 20), 0, nil)

	out := make([]float32, 10)
	tl.Render(out)
	if out[0] != 0.8 {
		t.Errorf("expected unity gain, got %v", out[0])
	}

	// Already scheduled audio follows the new volume
	gain.Set(0.5)
	tl.Render(out)
	if out[0] != 0.4 {
		t.Errorf("expected half gain, got %v", out[0])
	}
}

func TestTimelineOnEnded(t *testing.T) {
	tl := NewTimeline(24000, nil)

	var ended []Position
	tl.Schedule(constant(0.1, 10), 0, func() { ended = append(ended, tl.Now()) })

	tl.Render(make([]float32, 5))
	if len(ended) != 0 {
		t.Fatalf("expected no end notification mid-buffer")
	}

	tl.Render(make([]float32, 5))
	if len(ended) != 1 {
		t.Fatalf("expected one end notification, got %d", len(ended))
	}
	if ended[0] != 10 {
		t.Errorf("expected clock 10 at end notification, got %d", ended[0])
	}
}

func TestTimelineRead(t *testing.T) {
	tl := NewTimeline(24000, nil)
	tl.Schedule([]float32{1, -1, 0.5}, 0, nil)

	p := make([]byte, 8)
	n, err := tl.Read(p)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if n != 8 {
		t.Fatalf("Read() = %d bytes, want 8", n)
	}

	want := []int16{32767, -32768, 16383, 0}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(p[i*2:])); got != w {
			t.Errorf("frame %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestTimelineClose(t *testing.T) {
	tl := NewTimeline(24000, nil)

	called := 0
	tl.Schedule(constant(0.1, 100), 0, func() { called++ })

	tl.Close()
	tl.Close()

	if called != 1 {
		t.Errorf("expected pending callback to run once, got %d", called)
	}
	if _, err := tl.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("expected io.EOF after close, got %v", err)
	}

	tl.Schedule(constant(0.1, 10), 0, func() { called++ })
	if called != 2 {
		t.Errorf("expected schedule after close to end immediately")
	}
	if tl.Pending() != 0 {
		t.Errorf("expected nothing pending after close")
	}
}

func TestTimelineDuration(t *testing.T) {
	tl := NewTimeline(24000, nil)
	if d := tl.Duration(2400); d != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", d)
	}
}
