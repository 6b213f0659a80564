// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (whisper-1 and the gpt-4o transcribe models).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	language     string
	timeout      time.Duration
	maxRetries   int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) {
		c.organization = org
	}
}

// WithLanguage sets the default ISO-639-1 language hint.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries failed requests.
// Defaults to the client library's default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new OpenAI transcription Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, language: cfg.language}, nil
}

// Transcribe implements stt.Provider. Raw PCM is wrapped in WAV since the API
// only accepts container formats.
func (p *Provider) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	audio := rec.Audio
	if rec.Format == stt.FormatPCM {
		pcm, sr, ch, _ := rec.PCM()
		audio = stt.EncodeWAV(pcm, sr, ch)
	}

	params := oai.AudioTranscriptionNewParams{
		File:           oai.File(bytes.NewReader(audio), rec.Filename(), contentType(rec.Format)),
		Model:          p.model,
		ResponseFormat: oai.AudioResponseFormatJSON,
	}
	lang := rec.Language
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		// The API takes ISO-639-1, so "en-US" becomes "en".
		lang, _, _ = strings.Cut(lang, "-")
		params.Language = oai.String(lang)
	}
	if rec.Prompt != "" {
		params.Prompt = oai.String(rec.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}
	return stt.Transcript{
		Text:     text,
		Language: lang,
		Duration: rec.Duration(),
		Provider: "openai",
	}, nil
}

// ModelID returns the transcription model in use.
func (p *Provider) ModelID() string {
	return p.model
}

func contentType(f stt.Format) string {
	switch f {
	case stt.FormatPCM, stt.FormatWAV:
		return "audio/wav"
	case stt.FormatM4A:
		return "audio/mp4"
	case stt.FormatMP3:
		return "audio/mpeg"
	case stt.FormatWebM:
		return "audio/webm"
	}
	return "application/octet-stream"
}
