package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrWong99/rocketreaders/internal/config"
	"github.com/MrWong99/rocketreaders/internal/observe"
	"github.com/MrWong99/rocketreaders/internal/resilience"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
)

// STTBackends is the speech-to-text chain built from the providers config.
type STTBackends struct {
	// Fallback tries the configured backends in order.
	Fallback *resilience.STTFallback

	// Closers release backends that hold resources, such as a loaded
	// whisper.cpp model.
	Closers []func() error
}

// BuildSTT creates every configured STT backend through reg and chains them
// behind circuit breakers. Each backend reports its calls, latency and
// breaker state to m. It returns a nil Fallback when no primary backend is
// configured.
func BuildSTT(cfg config.ProvidersConfig, reg *config.Registry, m *observe.Metrics) (STTBackends, error) {
	var out STTBackends
	if cfg.STT.Name == "" {
		return out, nil
	}

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordCircuitState(context.Background(), name, int(to))
			},
		},
	}

	entries := append([]config.ProviderEntry{cfg.STT}, cfg.STTFallbacks...)
	// Reject unknown names before any backend loads a model.
	for _, entry := range entries {
		if !reg.HasSTT(entry.Name) {
			return STTBackends{}, fmt.Errorf("app: %w: stt %q (known: %v)", config.ErrProviderNotRegistered, entry.Name, reg.STTNames())
		}
	}

	seen := make(map[string]int)
	for i, entry := range entries {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			for _, c := range out.Closers {
				_ = c()
			}
			return STTBackends{}, fmt.Errorf("app: create stt provider %q: %w", entry.Name, err)
		}
		if c, ok := p.(io.Closer); ok {
			out.Closers = append(out.Closers, c.Close)
		}

		label := entry.Name
		if n := seen[entry.Name]; n > 0 {
			label = fmt.Sprintf("%s-%d", entry.Name, n+1)
		}
		seen[entry.Name]++

		p = &observedSTT{name: label, next: p, metrics: m}
		if i == 0 {
			out.Fallback = resilience.NewSTTFallback(p, label, fbCfg)
		} else {
			out.Fallback.AddFallback(label, p)
		}
		m.RecordCircuitState(context.Background(), label, int(resilience.StateClosed))
		slog.Info("stt backend ready", "name", label, "provider", entry.Name, "model", entry.Model, "fallback", i > 0)
	}
	return out, nil
}

// observedSTT records every call of one backend.
type observedSTT struct {
	name    string
	next    stt.Provider
	metrics *observe.Metrics
}

func (o *observedSTT) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	start := time.Now()
	tr, err := o.next.Transcribe(ctx, rec)
	status := "ok"
	switch {
	case errors.Is(err, stt.ErrEmptyTranscript):
		status = "empty"
	case err != nil:
		status = "error"
	}
	o.metrics.RecordProviderRequest(ctx, o.name, status, time.Since(start).Seconds())
	if err == nil && tr.Provider == "" {
		tr.Provider = o.name
	}
	return tr, err
}
