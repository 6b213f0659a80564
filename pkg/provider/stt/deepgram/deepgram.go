// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// live WebSocket API. It implements the stt.Provider interface.
//
// A recording is streamed over one connection in fixed-size chunks, the
// stream is closed with a CloseStream message and the final results Deepgram
// returns are joined into a single transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/coder/websocket"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkSize is 250 ms of 16 kHz mono PCM.
	chunkSize = 8000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint. Useful for tests and
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram live API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams rec to Deepgram and returns the joined final results.
func (p *Provider) Transcribe(ctx context.Context, rec stt.Recording) (stt.Transcript, error) {
	wsURL, err := p.buildURL(rec)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	// Reads run concurrently so Deepgram never blocks on a full send buffer.
	type readResult struct {
		tr  stt.Transcript
		err error
	}
	readDone := make(chan readResult, 1)
	go func() {
		tr, err := readFinals(ctx, conn)
		readDone <- readResult{tr, err}
	}()

	audio := rec.Audio
	if rec.Format == stt.FormatWAV {
		// Deepgram accepts WAV directly but raw PCM avoids a header in the middle
		// of a chunked stream.
		if pcm, _, _, err := rec.PCM(); err == nil {
			audio = pcm
		}
	}
	for off := 0; off < len(audio); off += chunkSize {
		end := min(off+chunkSize, len(audio))
		if err := conn.Write(ctx, websocket.MessageBinary, audio[off:end]); err != nil {
			return stt.Transcript{}, fmt.Errorf("deepgram: send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: close stream: %w", err)
	}

	var res readResult
	select {
	case res = <-readDone:
	case <-ctx.Done():
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", ctx.Err())
	}
	conn.Close(websocket.StatusNormalClosure, "transcription complete")
	if res.err != nil {
		return stt.Transcript{}, res.err
	}
	if strings.TrimSpace(res.tr.Text) == "" {
		return stt.Transcript{}, stt.ErrEmptyTranscript
	}
	res.tr.Language = rec.Language
	if res.tr.Language == "" {
		res.tr.Language = p.language
	}
	res.tr.Provider = "deepgram"
	return res.tr, nil
}

// buildURL constructs the Deepgram endpoint URL for rec.
func (p *Provider) buildURL(rec stt.Recording) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := rec.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")

	switch rec.Format {
	case stt.FormatPCM, stt.FormatWAV:
		sr, ch := rec.SampleRate, rec.Channels
		if rec.Format == stt.FormatWAV {
			if _, wsr, wch, err := rec.PCM(); err == nil {
				sr, ch = wsr, wch
			}
		}
		if sr <= 0 {
			sr = stt.DefaultSampleRate
		}
		if ch <= 0 {
			ch = 1
		}
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(sr))
		q.Set("channels", strconv.Itoa(ch))
	}
	// Containerised formats are detected by Deepgram from the stream header.

	for _, kw := range keywords(rec.Prompt) {
		q.Add("keyterm", kw)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// keywords turns a prompt into unique lower-case key terms. Deepgram caps
// the number of key terms per request, so at most 50 are returned.
func keywords(prompt string) []string {
	const maxKeyterms = 50
	seen := make(map[string]bool)
	var out []string
	for _, f := range strings.Fields(strings.ToLower(prompt)) {
		f = strings.Trim(f, ".,!?;:'\"-")
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxKeyterms {
			break
		}
	}
	return out
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Duration float64 `json:"duration"`
	Start    float64 `json:"start"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// readFinals collects final results until Deepgram closes the connection or
// sends its closing Metadata message.
func readFinals(ctx context.Context, conn *websocket.Conn) (stt.Transcript, error) {
	var (
		parts   []string
		out     stt.Transcript
		confSum float64
		n       int
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if len(parts) > 0 {
				// The server may drop the socket right after the last result.
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}

		var typ struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &typ); err != nil {
			continue
		}
		if typ.Type == "Metadata" {
			break
		}

		t, end, ok := parseDeepgramResponse(msg)
		if !ok || strings.TrimSpace(t.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(t.Text))
		out.Words = append(out.Words, t.Words...)
		confSum += t.Confidence
		n++
		out.Duration = max(out.Duration, end)
	}

	out.Text = strings.Join(parts, " ")
	if n > 0 {
		out.Confidence = confSum / float64(n)
	}
	return out, nil
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message into a
// Transcript and the end offset of the result. It returns ok=false for
// anything other than a final Results message.
func parseDeepgramResponse(data []byte) (stt.Transcript, time.Duration, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Transcript{}, 0, false
	}
	if resp.Type != "Results" || !resp.IsFinal {
		return stt.Transcript{}, 0, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return stt.Transcript{}, 0, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	end := time.Duration((resp.Start + resp.Duration) * float64(time.Second))
	return stt.Transcript{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
		Words:      words,
	}, end, true
}
