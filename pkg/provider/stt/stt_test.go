package stt_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt/mock"
)

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	wav := stt.EncodeWAV(pcm, 8000, 2)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("EncodeWAV length = %d, want %d", len(wav), 44+len(pcm))
	}

	got, sr, ch, err := stt.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if sr != 8000 || ch != 2 {
		t.Errorf("DecodeWAV sampleRate=%d channels=%d, want 8000/2", sr, ch)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("DecodeWAV pcm = %v, want %v", got, pcm)
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range [][]byte{nil, []byte("not a wav file at all"), []byte("RIFF\x00\x00\x00\x00WAVE")} {
		if _, _, _, err := stt.DecodeWAV(in); err == nil {
			t.Errorf("DecodeWAV(%q): expected error", in)
		}
	}
}

func TestRecording_Duration(t *testing.T) {
	t.Parallel()

	rec := stt.Recording{Audio: make([]byte, 32000), Format: stt.FormatPCM}
	if got := rec.Duration(); got != time.Second {
		t.Errorf("PCM Duration = %v, want 1s", got)
	}

	wav := stt.Recording{Audio: stt.EncodeWAV(make([]byte, 16000), 16000, 1), Format: stt.FormatWAV}
	if got := wav.Duration(); got != 500*time.Millisecond {
		t.Errorf("WAV Duration = %v, want 500ms", got)
	}

	m4a := stt.Recording{Audio: []byte{0}, Format: stt.FormatM4A}
	if got := m4a.Duration(); got != 0 {
		t.Errorf("M4A Duration = %v, want 0", got)
	}
	if _, _, _, err := m4a.PCM(); !errors.Is(err, stt.ErrUnsupportedFormat) {
		t.Errorf("M4A PCM error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := map[string]stt.Format{
		".wav":        stt.FormatWAV,
		"audio/x-m4a": stt.FormatM4A,
		"MP3":         stt.FormatMP3,
		"audio/webm":  stt.FormatWebM,
		"s16le":       stt.FormatPCM,
		"flac":        "",
	}
	for in, want := range tests {
		if got := stt.ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRateLimited_PassThrough(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Result: stt.Transcript{Text: "hello"}}
	if got := stt.RateLimited(p, 0); got != stt.Provider(p) {
		t.Error("RateLimited with 0 should return the provider unchanged")
	}

	limited := stt.RateLimited(p, 600)
	tr, err := limited.Transcribe(context.Background(), stt.Recording{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "hello" {
		t.Errorf("Text = %q, want %q", tr.Text, "hello")
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestRateLimited_ContextCancelled(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Result: stt.Transcript{Text: "hello"}}
	limited := stt.RateLimited(p, 1)

	// Consume the single burst token.
	if _, err := limited.Transcribe(context.Background(), stt.Recording{}); err != nil {
		t.Fatalf("first Transcribe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Transcribe(ctx, stt.Recording{}); err == nil {
		t.Fatal("expected error when the limiter cannot grant a token before the deadline")
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
