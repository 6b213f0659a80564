package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with failover across multiple STT
// backends, each behind its own circuit breaker.
//
// A recording without speech ([stt.ErrEmptyTranscript]) or a done context
// ends the attempt at once: asking another backend would not help and the
// backend is not at fault.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	if cfg.Permanent == nil {
		cfg.Permanent = IsPermanentSTTError
	}
	if cfg.CircuitBreaker.IsFailure == nil {
		// A backend that cannot decode a format is skipped, not penalised.
		cfg.CircuitBreaker.IsFailure = func(err error) bool {
			return !IsPermanentSTTError(err) && !errors.Is(err, stt.ErrUnsupportedFormat)
		}
	}
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Backends returns the backend names in try order.
func (f *STTFallback) Backends() []string {
	return f.group.Names()
}

// States returns the circuit state per backend.
func (f *STTFallback) States() map[string]State {
	return f.group.States()
}

// Transcribe runs rec through the first healthy backend that succeeds. The
// returned transcript's Provider names that backend when the backend itself
// left it empty.
func (f *STTFallback) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	tr, name, err := ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		if err := ctx.Err(); err != nil {
			return stt.Transcript{}, err
		}
		return p.Transcribe(ctx, rec)
	})
	if err != nil {
		return stt.Transcript{}, err
	}
	if tr.Provider == "" {
		tr.Provider = name
	}
	return tr, nil
}

// IsPermanentSTTError reports errors that failing over cannot fix.
func IsPermanentSTTError(err error) bool {
	return errors.Is(err, stt.ErrEmptyTranscript) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
