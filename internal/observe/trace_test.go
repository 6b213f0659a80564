package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// useTestTracer installs an in-memory tracer provider as the global one for
// the duration of the test. Tests using it must not run in parallel.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs points slog.Default at a buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestStartSpan_StageSpans(t *testing.T) {
	exp := useTestTracer(t)

	ctx, outer := StartSpan(context.Background(), "assess.Assess")
	_, inner := StartSpan(ctx, "assess.detect")
	inner.End()
	outer.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	detect, assess := spans[0], spans[1]
	if detect.Name != "assess.detect" || assess.Name != "assess.Assess" {
		t.Fatalf("span names = %q, %q", detect.Name, assess.Name)
	}
	if detect.Parent.SpanID() != assess.SpanContext.SpanID() {
		t.Error("detect span is not a child of the assess span")
	}
	if detect.InstrumentationScope.Name != tracerName {
		t.Errorf("scope = %q, want %q", detect.InstrumentationScope.Name, tracerName)
	}
}

func TestFailSpan(t *testing.T) {
	exp := useTestTracer(t)

	_, ok := StartSpan(context.Background(), "assess.transcribe")
	FailSpan(ok, nil)
	ok.End()

	_, failed := StartSpan(context.Background(), "assess.transcribe")
	FailSpan(failed, errors.New("whisper: server returned 500"))
	failed.End()

	spans := exp.GetSpans()
	if spans[0].Status.Code != codes.Unset || len(spans[0].Events) != 0 {
		t.Errorf("nil error changed the span: %+v", spans[0].Status)
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "whisper: server returned 500" {
		t.Errorf("status = %+v, want error with the message", spans[1].Status)
	}
	if len(spans[1].Events) != 1 || spans[1].Events[0].Name != "exception" {
		t.Errorf("events = %+v, want one exception event", spans[1].Events)
	}
}

func TestCorrelationID(t *testing.T) {
	useTestTracer(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	seen := make(map[string]bool)
	for range 50 {
		ctx, span := StartSpan(context.Background(), "attempt")
		cid := CorrelationID(ctx)
		span.End()
		if !traceIDPattern.MatchString(cid) {
			t.Fatalf("CorrelationID = %q, want 32 hex characters", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation ID %s", cid)
		}
		seen[cid] = true
	}
}

func TestLogger(t *testing.T) {
	useTestTracer(t)

	tests := []struct {
		name     string
		withSpan bool
	}{
		{name: "inside a span", withSpan: true},
		{name: "without span"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx := context.Background()
			if tt.withSpan {
				c, s := StartSpan(ctx, "assess.Assess")
				defer s.End()
				ctx = c
			}

			Logger(ctx).Info("attempt assessed", "wcpm", 42)

			logged := buf.String()
			if !strings.Contains(logged, "wcpm=42") {
				t.Fatalf("log line misses the caller's attributes: %s", logged)
			}
			hasIDs := strings.Contains(logged, "trace_id=") && strings.Contains(logged, "span_id=")
			if hasIDs != tt.withSpan {
				t.Errorf("trace ids present = %v, want %v: %s", hasIDs, tt.withSpan, logged)
			}
		})
	}
}
