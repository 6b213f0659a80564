package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	sttmock "github.com/MrWong99/rocketreaders/pkg/provider/stt/mock"
)

var testRecording = stt.Recording{Audio: []byte{1, 2, 3, 4}, Format: stt.FormatWAV}

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Transcript{Text: "the cat sat"}}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai", secondary)

	tr, err := fb.Transcribe(context.Background(), testRecording)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "the cat sat" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Provider != "whisper" {
		t.Errorf("Provider = %q, want the entry name", tr.Provider)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Fatalf("primary called %d times, want 1", n)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Fatalf("secondary called %d times, want 0", n)
	}
	if got := fb.Backends(); len(got) != 2 || got[1] != "openai" {
		t.Errorf("Backends() = %v", got)
	}
}

func TestSTTFallback_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "hello", Provider: "openai"}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("openai-backup", secondary)

	tr, err := fb.Transcribe(context.Background(), testRecording)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Provider != "openai" {
		t.Errorf("Provider = %q, want the backend's own name kept", tr.Provider)
	}
	if n := len(secondary.Calls()); n != 1 {
		t.Fatalf("secondary called %d times, want 1", n)
	}
}

func TestSTTFallback_UnsupportedFormatFailsOverWithoutTripping(t *testing.T) {
	primary := &sttmock.Provider{Err: fmt.Errorf("whisper: %w", stt.ErrUnsupportedFormat)}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "hello"}}

	fb := NewSTTFallback(primary, "native", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("openai", secondary)

	for range 3 {
		if _, err := fb.Transcribe(context.Background(), testRecording); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := fb.States()["native"]; got != StateClosed {
		t.Errorf("native breaker = %v, want closed", got)
	}
	if n := len(primary.Calls()); n != 3 {
		t.Errorf("primary called %d times, want 3", n)
	}
}

func TestSTTFallback_EmptyTranscriptIsFinal(t *testing.T) {
	primary := &sttmock.Provider{Err: stt.ErrEmptyTranscript}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "hallucinated"}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.AddFallback("openai", secondary)

	_, err := fb.Transcribe(context.Background(), testRecording)
	if !errors.Is(err, stt.ErrEmptyTranscript) {
		t.Fatalf("err = %v, want ErrEmptyTranscript", err)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Fatalf("secondary called %d times, want 0", n)
	}
}

func TestSTTFallback_CancelledContext(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Transcript{Text: "x"}}
	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fb.Transcribe(ctx, testRecording)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := len(primary.Calls()); n != 0 {
		t.Fatalf("primary called %d times, want 0", n)
	}
}

func TestSTTFallback_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), testRecording)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
