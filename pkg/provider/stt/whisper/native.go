// Building this file needs libwhisper.a and whisper.h from a whisper.cpp
// checkout on LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings
// (CGO). The model is loaded once at startup and shared by all calls; each
// call gets its own whisper context.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// sem bounds concurrent inferences; whisper contexts are memory hungry.
	sem chan struct{}

	closeOnce sync.Once
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeConcurrency sets how many recordings may be transcribed at once.
// Defaults to 1.
func WithNativeConcurrency(n int) NativeOption {
	return func(p *NativeProvider) {
		if n > 0 {
			p.sem = make(chan struct{}, n)
		}
	}
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
		sem:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.model != nil {
			err = p.model.Close()
		}
	})
	return err
}

// Transcribe runs in-process inference on rec. Only PCM and WAV recordings
// are supported; anything else returns stt.ErrUnsupportedFormat.
func (p *NativeProvider) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	pcm, sr, ch, err := rec.PCM()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if computeRMS(pcm) < silenceRMS {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return stt.Transcript{}, fmt.Errorf("whisper: %w", ctx.Err())
	}

	lang := rec.Language
	if lang == "" {
		lang = p.language
	}

	out, err := p.infer(trimSilence(toWhisperSamples(pcm, sr, ch)), lang, rec.Prompt)
	if err != nil {
		return stt.Transcript{}, err
	}
	if out.text == "" {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}
	return stt.Transcript{
		Text:       out.text,
		Confidence: out.confidence,
		Language:   lang,
		Duration:   rec.Duration(),
		Provider:   "whisper-native",
	}, nil
}

// inference is the outcome of one model run.
type inference struct {
	text string

	// confidence is the mean probability of the text tokens.
	confidence float64
}

// infer decodes samples with a fresh context. Contexts are not safe for
// concurrent use; the model is.
func (p *NativeProvider) infer(samples []float32, lang, prompt string) (inference, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return inference{}, fmt.Errorf("whisper: new context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language not supported by model, using its default", "language", lang, "err", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return inference{}, fmt.Errorf("whisper: process: %w", err)
	}

	var (
		parts  []string
		probs  float64
		tokens int
	)
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return inference{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		for _, tok := range seg.Tokens {
			if wctx.IsText(tok) {
				probs += float64(tok.P)
				tokens++
			}
		}
	}

	out := inference{text: strings.Join(parts, " ")}
	if tokens > 0 {
		out.confidence = probs / float64(tokens)
	}
	return out, nil
}
