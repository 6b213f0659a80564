// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] uploads recordings to a running whisper-server (POST
// /inference). [NativeProvider] runs the model in-process through the
// whisper.cpp CGO bindings.
//
//	p, err := whisper.New("http://localhost:8081", whisper.WithLanguage("en"))
//	tr, err := p.Transcribe(ctx, stt.Recording{Audio: wav, Format: stt.FormatWAV})
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
)

const (
	// silenceRMS is the energy, in 16-bit sample units, below which a whole
	// recording counts as silent.
	silenceRMS = 100.0

	defaultLanguage = "en"

	// maxErrorBody bounds how much of a failed response ends up in the error.
	maxErrorBody = 512
)

var _ stt.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel names the model the server should use. Empty keeps whatever the
// server was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language. Default: "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider transcribes through a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: server URL is required")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// verboseResult is the verbose_json body of /inference.
type verboseResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
		Words      []struct {
			Word        string  `json:"word"`
			Start       float64 `json:"start"`
			End         float64 `json:"end"`
			Probability float64 `json:"probability"`
		} `json:"words"`
	} `json:"segments"`
}

// Transcribe uploads rec. Raw PCM is sent as WAV. A PCM or WAV recording
// below the silence threshold returns stt.ErrEmptyTranscript without a
// request.
func (p *Provider) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	audio := rec.Audio
	if pcm, sr, ch, err := rec.PCM(); err == nil {
		if computeRMS(pcm) < silenceRMS {
			return stt.Transcript{}, stt.ErrEmptyTranscript
		}
		if rec.Format == stt.FormatPCM {
			audio = stt.EncodeWAV(pcm, sr, ch)
		}
	}
	lang := rec.Language
	if lang == "" {
		lang = p.language
	}

	body, contentType, err := p.form(audio, rec.Filename(), lang, rec.Prompt)
	if err != nil {
		return stt.Transcript{}, err
	}
	res, err := p.post(ctx, body, contentType)
	if err != nil {
		return stt.Transcript{}, err
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}
	tr := stt.Transcript{
		Text:     text,
		Language: lang,
		Duration: rec.Duration(),
		Provider: "whisper",
	}
	if res.Language != "" {
		tr.Language = res.Language
	}
	var logprobs float64
	for _, seg := range res.Segments {
		logprobs += seg.AvgLogprob
		for _, w := range seg.Words {
			tr.Words = append(tr.Words, stt.WordDetail{
				Word:       strings.TrimSpace(w.Word),
				Start:      seconds(w.Start),
				End:        seconds(w.End),
				Confidence: w.Probability,
			})
		}
	}
	if n := len(res.Segments); n > 0 {
		tr.Confidence = math.Exp(logprobs / float64(n))
	}
	return tr, nil
}

// form builds the multipart upload. Empty fields are left out so the server
// applies its own defaults.
func (p *Provider) form(audio []byte, filename, lang, prompt string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err == nil {
		_, err = fw.Write(audio)
	}
	if err != nil {
		return nil, "", fmt.Errorf("whisper: write audio: %w", err)
	}
	for _, f := range [][2]string{
		{"response_format", "verbose_json"},
		{"temperature", "0"},
		{"language", lang},
		{"model", p.model},
		{"prompt", prompt},
	} {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close form: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

func (p *Provider) post(ctx context.Context, body io.Reader, contentType string) (verboseResult, error) {
	var res verboseResult
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return res, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return res, fmt.Errorf("whisper: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return res, fmt.Errorf("whisper: server returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return res, fmt.Errorf("whisper: decode response: %w", err)
	}
	return res, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

// computeRMS returns the root-mean-square of 16-bit little-endian PCM, or 0
// for less than one sample.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
