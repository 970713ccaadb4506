// Package observe provides application-wide observability primitives for the
// brainrot voice bot: OpenTelemetry metrics and the Prometheus exporter
// bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all bot metrics.
const meterName = "github.com/GabrielAgrela/Discord-Brain-Rot-sub000"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecognitionDuration tracks speech-to-text transcription latency.
	RecognitionDuration metric.Float64Histogram

	// PlaybackDuration tracks how long sound playbacks run.
	PlaybackDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts finalized utterances. Use with attribute:
	//   attribute.String("status", "transcribed"|"discarded"|"error")
	Utterances metric.Int64Counter

	// KeywordMatches counts spotted keywords. Use with attribute:
	//   attribute.String("keyword", ...)
	KeywordMatches metric.Int64Counter

	// Playbacks counts playback requests. Use with attributes:
	//   attribute.String("priority", ...), attribute.String("status", ...)
	Playbacks metric.Int64Counter

	// BufferEvictions counts speaker-buffer evictions. Use with attribute:
	//   attribute.String("reason", "idle"|"stuck")
	BufferEvictions metric.Int64Counter

	// --- Gauges ---

	// ActiveSpeakers tracks the number of speakers with a live buffer entry.
	ActiveSpeakers metric.Int64UpDownCounter

	// ActiveChannels tracks the number of joined voice channels.
	ActiveChannels metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecognitionDuration, err = m.Float64Histogram("brainrot.recognition.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("brainrot.playback.duration",
		metric.WithDescription("Duration of sound playbacks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("brainrot.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("brainrot.utterances",
		metric.WithDescription("Total finalized utterances by status."),
	); err != nil {
		return nil, err
	}
	if met.KeywordMatches, err = m.Int64Counter("brainrot.keyword.matches",
		metric.WithDescription("Total keyword matches by keyword."),
	); err != nil {
		return nil, err
	}
	if met.Playbacks, err = m.Int64Counter("brainrot.playbacks",
		metric.WithDescription("Total playback requests by priority and status."),
	); err != nil {
		return nil, err
	}
	if met.BufferEvictions, err = m.Int64Counter("brainrot.buffer.evictions",
		metric.WithDescription("Total speaker-buffer evictions by reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSpeakers, err = m.Int64UpDownCounter("brainrot.active_speakers",
		metric.WithDescription("Number of speakers with a live buffer entry."),
	); err != nil {
		return nil, err
	}
	if met.ActiveChannels, err = m.Int64UpDownCounter("brainrot.active_channels",
		metric.WithDescription("Number of joined voice channels."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records an utterance counter increment with its outcome.
func (m *Metrics) RecordUtterance(ctx context.Context, status string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordKeywordMatch records a keyword match counter increment.
func (m *Metrics) RecordKeywordMatch(ctx context.Context, keyword string) {
	m.KeywordMatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}

// RecordPlayback records a playback counter increment with the standard
// attribute set.
func (m *Metrics) RecordPlayback(ctx context.Context, priority, status string) {
	m.Playbacks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("priority", priority),
			attribute.String("status", status),
		),
	)
}

// RecordEviction records a speaker-buffer eviction counter increment.
func (m *Metrics) RecordEviction(ctx context.Context, reason string) {
	m.BufferEvictions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
