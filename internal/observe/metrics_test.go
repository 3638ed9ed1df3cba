// ABOUTME: Tests for voice pipeline metrics
// ABOUTME: Collects observable instruments through a manual reader
package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Resonate-Protocol/voicebridge/pkg/voice"
)

func newTestMetrics(t *testing.T, src Sources) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp, src)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func int64Value(t *testing.T, m *metricdata.Metrics, outcome string) int64 {
	t.Helper()
	if m == nil {
		t.Fatal("metric not found")
	}

	var points []metricdata.DataPoint[int64]
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		points = data.DataPoints
	case metricdata.Gauge[int64]:
		points = data.DataPoints
	default:
		t.Fatalf("unexpected data type %T for %s", m.Data, m.Name)
	}

	for _, dp := range points {
		if outcome == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok && v.AsString() == outcome {
			return dp.Value
		}
	}
	t.Fatalf("no data point for %s outcome=%q", m.Name, outcome)
	return 0
}

func float64Value(t *testing.T, m *metricdata.Metrics) float64 {
	t.Helper()
	if m == nil {
		t.Fatal("metric not found")
	}
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	if !ok || len(gauge.DataPoints) == 0 {
		t.Fatalf("unexpected data for %s: %T", m.Name, m.Data)
	}
	return gauge.DataPoints[0].Value
}

func TestMetricsObserveSources(t *testing.T) {
	_, reader := newTestMetrics(t, Sources{
		Capture: func() voice.CaptureStats {
			return voice.CaptureStats{Blocks: 100, Sent: 90, Muted: 8, Dropped: 2, TransmitErrors: 1}
		},
		Playback: func() voice.PlaybackStats {
			return voice.PlaybackStats{Scheduled: 40, DecodeErrors: 3, Underruns: 2, Ahead: 250 * time.Millisecond}
		},
		Narrator: func() voice.NarratorState { return voice.StateStalled },
		Volume:   func() float64 { return 0.6 },
		MicLevel: func() float64 { return 0.1 },
	})

	rm := collect(t, reader)

	if got := int64Value(t, findMetric(rm, "voicebridge.capture.blocks"), ""); got != 100 {
		t.Errorf("capture.blocks = %d, want 100", got)
	}

	frames := findMetric(rm, "voicebridge.capture.frames")
	for outcome, want := range map[string]int64{"sent": 90, "muted": 8, "dropped": 2} {
		if got := int64Value(t, frames, outcome); got != want {
			t.Errorf("capture.frames{%s} = %d, want %d", outcome, got, want)
		}
	}

	playback := findMetric(rm, "voicebridge.playback.frames")
	if got := int64Value(t, playback, "decode_error"); got != 3 {
		t.Errorf("playback.frames{decode_error} = %d, want 3", got)
	}
	if got := int64Value(t, findMetric(rm, "voicebridge.playback.underruns"), ""); got != 2 {
		t.Errorf("playback.underruns = %d, want 2", got)
	}
	if got := float64Value(t, findMetric(rm, "voicebridge.playback.ahead")); got != 0.25 {
		t.Errorf("playback.ahead = %v, want 0.25", got)
	}
	if got := float64Value(t, findMetric(rm, "voicebridge.playback.volume")); got != 0.6 {
		t.Errorf("playback.volume = %v, want 0.6", got)
	}
	if got := int64Value(t, findMetric(rm, "voicebridge.narrator.state"), ""); got != int64(voice.StateStalled) {
		t.Errorf("narrator.state = %d, want %d", got, voice.StateStalled)
	}
}

func TestMetricsSkipMissingSources(t *testing.T) {
	_, reader := newTestMetrics(t, Sources{
		Volume: func() float64 { return 1 },
	})

	rm := collect(t, reader)
	if findMetric(rm, "voicebridge.capture.blocks") != nil {
		t.Error("expected no capture data without a capture source")
	}
	if findMetric(rm, "voicebridge.playback.volume") == nil {
		t.Error("expected volume observed")
	}
}

func TestMetricsClose(t *testing.T) {
	m, reader := newTestMetrics(t, Sources{
		Volume: func() float64 { return 1 },
	})

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	rm := collect(t, reader)
	if m := findMetric(rm, "voicebridge.playback.volume"); m != nil {
		if gauge, ok := m.Data.(metricdata.Gauge[float64]); ok && len(gauge.DataPoints) > 0 {
			t.Error("expected no observations after Close")
		}
	}
}

func TestInitProvider(t *testing.T) {
	mp, shutdown, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	if mp == nil {
		t.Fatal("expected meter provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
