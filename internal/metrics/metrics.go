// Package metrics records capture and transcription metrics through the
// OpenTelemetry metrics API. Tray mode exposes them on a Prometheus /metrics
// endpoint; tests use NewMetrics with a ManualReader-backed provider.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName   = "github.com/petems/microdrop"
	serviceName = "microdrop"
)

// Session outcomes used as the "status" attribute on Sessions.
const (
	StatusOK        = "ok"
	StatusTooShort  = "too_short"
	StatusSilent    = "silent"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// Metrics holds the instruments for one process.
type Metrics struct {
	CaptureDuration    metric.Float64Histogram
	CaptureSamples     metric.Int64Counter
	CaptureDropped     metric.Int64Counter
	StreamErrors       metric.Int64Counter
	ProcessDuration    metric.Float64Histogram
	TranscribeDuration metric.Float64Histogram

	// Sessions counts finished toggle sessions by attribute "status".
	Sessions metric.Int64Counter
}

// recordingBuckets covers dictation lengths, in seconds.
var recordingBuckets = []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// latencyBuckets covers DSP and inference latency, in seconds.
var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CaptureDuration, err = m.Float64Histogram("microdrop.capture.duration",
		metric.WithDescription("Length of captured audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(recordingBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureSamples, err = m.Int64Counter("microdrop.capture.samples",
		metric.WithDescription("Interleaved samples drained from the capture buffer."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDropped, err = m.Int64Counter("microdrop.capture.dropped",
		metric.WithDescription("Samples dropped because the capture buffer was full."),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("microdrop.stream.errors",
		metric.WithDescription("Errors reported by the audio backend during capture."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("microdrop.process.duration",
		metric.WithDescription("Time spent downmixing and resampling a recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("microdrop.transcribe.duration",
		metric.WithDescription("Time spent in speech-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("microdrop.sessions",
		metric.WithDescription("Finished dictation sessions by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Nop returns instruments that record nothing.
func Nop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// Capture records one stopped capture.
func (m *Metrics) Capture(ctx context.Context, duration time.Duration, samples int, dropped, streamErrors uint64) {
	m.CaptureDuration.Record(ctx, duration.Seconds())
	m.CaptureSamples.Add(ctx, int64(samples))
	if dropped > 0 {
		m.CaptureDropped.Add(ctx, int64(dropped))
	}
	if streamErrors > 0 {
		m.StreamErrors.Add(ctx, int64(streamErrors))
	}
}

// Session counts a finished session with the given status.
func (m *Metrics) Session(ctx context.Context, status string) {
	m.Sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
