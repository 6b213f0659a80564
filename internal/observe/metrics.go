// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, distributed tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Instruments live behind the OpenTelemetry Metrics API; [Setup] bridges
// them into the Prometheus registry served on /metrics. Tests build their
// own [Metrics] from a ManualReader provider via [NewMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/rocketreaders"

// Metrics holds all OpenTelemetry metric instruments for the application.
type Metrics struct {
	// STTDuration tracks transcription latency per backend.
	STTDuration metric.Float64Histogram

	// AlignDuration tracks how long error detection takes for one attempt.
	AlignDuration metric.Float64Histogram

	// ProviderRequests counts STT calls. Attributes: provider, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed STT calls. Attributes: provider.
	ProviderErrors metric.Int64Counter

	// Attempts counts assessed reading attempts. Attributes: source
	// ("audio" or "transcript"), status.
	Attempts metric.Int64Counter

	// ReadingErrors counts detected reading errors. Attributes: error_type.
	ReadingErrors metric.Int64Counter

	// WCPM records words correct per minute of every attempt.
	WCPM metric.Float64Histogram

	// Accuracy records the percentage of correctly read words per attempt.
	Accuracy metric.Float64Histogram

	// InFlight tracks attempts currently being assessed.
	InFlight metric.Int64UpDownCounter

	// CircuitState reports each STT backend's breaker state (0 closed,
	// 1 open, 2 half-open). Attributes: provider.
	CircuitState metric.Int64Gauge

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// sttBuckets are in seconds; a recording of a K-3 passage is usually under
// two minutes.
var sttBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

var alignBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}

var wcpmBuckets = []float64{10, 20, 40, 60, 80, 100, 120, 150, 200}

var accuracyBuckets = []float64{50, 70, 80, 90, 95, 98, 100}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("rocketreaders.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sttBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AlignDuration, err = m.Float64Histogram("rocketreaders.align.duration",
		metric.WithDescription("Latency of transcript alignment and error classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(alignBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("rocketreaders.provider.requests",
		metric.WithDescription("Total STT requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("rocketreaders.provider.errors",
		metric.WithDescription("Total STT errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.Attempts, err = m.Int64Counter("rocketreaders.attempts",
		metric.WithDescription("Total assessed reading attempts by source and status."),
	); err != nil {
		return nil, err
	}
	if met.ReadingErrors, err = m.Int64Counter("rocketreaders.reading_errors",
		metric.WithDescription("Total detected reading errors by type."),
	); err != nil {
		return nil, err
	}
	if met.WCPM, err = m.Float64Histogram("rocketreaders.wcpm",
		metric.WithDescription("Words correct per minute per attempt."),
		metric.WithUnit("{word}/min"),
		metric.WithExplicitBucketBoundaries(wcpmBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Accuracy, err = m.Float64Histogram("rocketreaders.accuracy",
		metric.WithDescription("Reading accuracy per attempt."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(accuracyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InFlight, err = m.Int64UpDownCounter("rocketreaders.attempts.in_flight",
		metric.WithDescription("Number of attempts currently being assessed."),
	); err != nil {
		return nil, err
	}
	if met.CircuitState, err = m.Int64Gauge("rocketreaders.provider.circuit_state",
		metric.WithDescription("Circuit breaker state per STT backend: 0 closed, 1 open, 2 half-open."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("rocketreaders.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. It panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one STT call and its latency. A non-empty
// status other than "ok" also increments [Metrics.ProviderErrors].
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string, seconds float64) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
	m.STTDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
	if status != "ok" {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// RecordAttempt records the outcome of one assessed attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, source, status string) {
	m.Attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status),
	))
}

// RecordScores records the fluency figures and per-type error counts of a
// successful attempt. counts is keyed by error type.
func (m *Metrics) RecordScores(ctx context.Context, wcpm, accuracy float64, counts map[string]int) {
	m.WCPM.Record(ctx, wcpm)
	m.Accuracy.Record(ctx, accuracy)
	for typ, n := range counts {
		if n == 0 {
			continue
		}
		m.ReadingErrors.Add(ctx, int64(n), metric.WithAttributes(attribute.String("error_type", typ)))
	}
}

// RecordCircuitState publishes the breaker state of an STT backend.
func (m *Metrics) RecordCircuitState(ctx context.Context, provider string, state int) {
	m.CircuitState.Record(ctx, int64(state), metric.WithAttributes(attribute.String("provider", provider)))
}
