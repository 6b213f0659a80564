package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Telemetry owns the meter and tracer providers installed by [Setup] and the
// Prometheus registry /metrics is served from.
type Telemetry struct {
	registry *prometheus.Registry
	meters   *sdkmetric.MeterProvider
	tracers  *sdktrace.TracerProvider
}

type telemetryOptions struct {
	serviceName    string
	serviceVersion string
	exporter       sdktrace.SpanExporter
	sampleRatio    float64
}

// TelemetryOption configures [Setup].
type TelemetryOption func(*telemetryOptions)

// WithServiceName sets service.name. Default: "rocketreaders".
func WithServiceName(name string) TelemetryOption {
	return func(o *telemetryOptions) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithServiceVersion sets service.version.
func WithServiceVersion(v string) TelemetryOption {
	return func(o *telemetryOptions) { o.serviceVersion = v }
}

// WithSpanExporter batches finished spans to exp. Without one spans are
// sampled and dropped, which still gives every request a correlation ID.
func WithSpanExporter(exp sdktrace.SpanExporter) TelemetryOption {
	return func(o *telemetryOptions) { o.exporter = exp }
}

// WithSampleRatio samples this fraction of new traces. Requests that arrive
// with a sampled parent are always recorded. Default: 1.
func WithSampleRatio(r float64) TelemetryOption {
	return func(o *telemetryOptions) { o.sampleRatio = r }
}

// Setup installs global meter and tracer providers plus the W3C trace
// context propagator. Metrics are bridged into a private Prometheus
// registry that also carries the Go runtime and process collectors, so
// repeated calls (as in tests) never collide on registration.
func Setup(ctx context.Context, opts ...TelemetryOption) (*Telemetry, error) {
	o := telemetryOptions{serviceName: "rocketreaders", sampleRatio: 1}
	for _, fn := range opts {
		fn(&o)
	}
	if o.sampleRatio < 0 || o.sampleRatio > 1 {
		return nil, fmt.Errorf("observe: sample ratio %v outside [0, 1]", o.sampleRatio)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(o.serviceName),
		semconv.ServiceVersion(o.serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	if err := errors.Join(
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	); err != nil {
		return nil, fmt.Errorf("observe: runtime collectors: %w", err)
	}
	bridge, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.sampleRatio))),
	}
	if o.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(o.exporter))
	}

	t := &Telemetry{
		registry: reg,
		meters:   sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(bridge)),
		tracers:  sdktrace.NewTracerProvider(tpOpts...),
	}
	otel.SetMeterProvider(t.meters)
	otel.SetTracerProvider(t.tracers)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return t, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// Registry exposes the Prometheus registry for extra collectors.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }

// Shutdown flushes pending spans and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.tracers.Shutdown(ctx), t.meters.Shutdown(ctx))
}

// MetricsHandler serves the default Prometheus registry. It is the
// /metrics fallback when no [Telemetry] has been set up.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
