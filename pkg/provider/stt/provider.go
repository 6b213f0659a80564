// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider turns one complete reading recording into plain text. Reading
// attempts are short (a K-3 passage rarely exceeds two minutes of audio), so
// the interface is request/response rather than streaming: the caller hands
// over the whole [Recording] and receives a single [Transcript].
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyTranscript is returned when a provider produced no text for a
// recording. Callers must not run error detection on an empty transcript.
var ErrEmptyTranscript = errors.New("stt: empty transcript")

// ErrUnsupportedFormat is returned when a provider cannot handle the audio
// format of a recording.
var ErrUnsupportedFormat = errors.New("stt: unsupported audio format")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts rec into text. It returns ErrEmptyTranscript when the
	// backend recognised no speech, and a wrapped backend error otherwise.
	Transcribe(ctx context.Context, rec Recording) (Transcript, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, rec Recording) (Transcript, error)

// Transcribe calls f.
func (f ProviderFunc) Transcribe(ctx context.Context, rec Recording) (Transcript, error) {
	return f(ctx, rec)
}
