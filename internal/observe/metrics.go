// ABOUTME: Voice pipeline metrics
// ABOUTME: Exposes capture, playback and narrator statistics as observable instruments
package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Resonate-Protocol/voicebridge/pkg/voice"
)

// meterName is the instrumentation scope name used for all voicebridge metrics
const meterName = "github.com/Resonate-Protocol/voicebridge"

// Sources supplies the values observed at collection time. Nil sources
// are skipped.
type Sources struct {
	Capture  func() voice.CaptureStats
	Playback func() voice.PlaybackStats
	Narrator func() voice.NarratorState
	Volume   func() float64
	MicLevel func() float64
}

// Metrics holds the registered instruments
type Metrics struct {
	captureBlocks  metric.Int64ObservableCounter
	captureFrames  metric.Int64ObservableCounter
	transmitErrors metric.Int64ObservableCounter
	playbackFrames metric.Int64ObservableCounter
	underruns      metric.Int64ObservableCounter
	ahead          metric.Float64ObservableGauge
	volume         metric.Float64ObservableGauge
	micLevel       metric.Float64ObservableGauge
	narrator       metric.Int64ObservableGauge

	registration metric.Registration
}

// NewMetrics creates the instruments on mp and registers a callback reading
// src. Call Close to unregister.
func NewMetrics(mp metric.MeterProvider, src Sources) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.captureBlocks, err = m.Int64ObservableCounter("voicebridge.capture.blocks",
		metric.WithDescription("Microphone blocks processed."),
	); err != nil {
		return nil, err
	}
	if met.captureFrames, err = m.Int64ObservableCounter("voicebridge.capture.frames",
		metric.WithDescription("Capture frames by outcome: sent, muted, dropped."),
	); err != nil {
		return nil, err
	}
	if met.transmitErrors, err = m.Int64ObservableCounter("voicebridge.capture.transmit_errors",
		metric.WithDescription("Capture frames the transport failed to send."),
	); err != nil {
		return nil, err
	}
	if met.playbackFrames, err = m.Int64ObservableCounter("voicebridge.playback.frames",
		metric.WithDescription("Narration frames by outcome: scheduled, decode_error, device_error, dropped."),
	); err != nil {
		return nil, err
	}
	if met.underruns, err = m.Int64ObservableCounter("voicebridge.playback.underruns",
		metric.WithDescription("Narration frames that arrived after the previous one finished."),
	); err != nil {
		return nil, err
	}
	if met.ahead, err = m.Float64ObservableGauge("voicebridge.playback.ahead",
		metric.WithDescription("Narration audio queued ahead of the output clock."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.volume, err = m.Float64ObservableGauge("voicebridge.playback.volume",
		metric.WithDescription("Playback volume in [0, 1]."),
	); err != nil {
		return nil, err
	}
	if met.micLevel, err = m.Float64ObservableGauge("voicebridge.capture.level",
		metric.WithDescription("RMS level of the latest microphone block."),
	); err != nil {
		return nil, err
	}
	if met.narrator, err = m.Int64ObservableGauge("voicebridge.narrator.state",
		metric.WithDescription("Narrator state: 0 idle, 1 speaking, 2 stalled."),
	); err != nil {
		return nil, err
	}

	met.registration, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		met.observe(o, src)
		return nil
	},
		met.captureBlocks, met.captureFrames, met.transmitErrors,
		met.playbackFrames, met.underruns, met.ahead,
		met.volume, met.micLevel, met.narrator,
	)
	if err != nil {
		return nil, err
	}

	return met, nil
}

func (met *Metrics) observe(o metric.Observer, src Sources) {
	if src.Capture != nil {
		s := src.Capture()
		o.ObserveInt64(met.captureBlocks, s.Blocks)
		o.ObserveInt64(met.captureFrames, s.Sent, metric.WithAttributes(attribute.String("outcome", "sent")))
		o.ObserveInt64(met.captureFrames, s.Muted, metric.WithAttributes(attribute.String("outcome", "muted")))
		o.ObserveInt64(met.captureFrames, s.Dropped, metric.WithAttributes(attribute.String("outcome", "dropped")))
		o.ObserveInt64(met.transmitErrors, s.TransmitErrors)
	}
	if src.Playback != nil {
		s := src.Playback()
		o.ObserveInt64(met.playbackFrames, s.Scheduled, metric.WithAttributes(attribute.String("outcome", "scheduled")))
		o.ObserveInt64(met.playbackFrames, s.DecodeErrors, metric.WithAttributes(attribute.String("outcome", "decode_error")))
		o.ObserveInt64(met.playbackFrames, s.DeviceErrors, metric.WithAttributes(attribute.String("outcome", "device_error")))
		o.ObserveInt64(met.playbackFrames, s.Dropped, metric.WithAttributes(attribute.String("outcome", "dropped")))
		o.ObserveInt64(met.underruns, s.Underruns)
		o.ObserveFloat64(met.ahead, s.Ahead.Seconds())
	}
	if src.Volume != nil {
		o.ObserveFloat64(met.volume, src.Volume())
	}
	if src.MicLevel != nil {
		o.ObserveFloat64(met.micLevel, src.MicLevel())
	}
	if src.Narrator != nil {
		o.ObserveInt64(met.narrator, int64(src.Narrator()))
	}
}

// Close unregisters the collection callback
func (met *Metrics) Close() error {
	if met == nil || met.registration == nil {
		return nil
	}
	err := met.registration.Unregister()
	met.registration = nil
	if err != nil {
		return fmt.Errorf("observe: unregister metrics: %w", err)
	}
	return nil
}
