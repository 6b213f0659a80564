package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/coder/websocket"
)

// ---- URL / query-param tests ----

func TestBuildURL_PCM(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Recording{Format: stt.FormatPCM, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_ContainerFormat(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Recording{Format: stt.FormatM4A, Prompt: "The cat sat on the mat. The cat!"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
	assertEqual(t, "encoding", "", q.Get("encoding"))

	got := q["keyterm"]
	want := []string{"the", "cat", "sat", "mat"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("keyterm = %v, want %v", got, want)
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

// ---- response parsing ----

func TestParseDeepgramResponse(t *testing.T) {
	msg := []byte(`{"type":"Results","is_final":true,"start":1.0,"duration":1.5,"channel":{"alternatives":[{"transcript":"the cat sat","confidence":0.9,"words":[{"word":"the","start":1.0,"end":1.2,"confidence":0.95}]}]}}`)

	tr, end, ok := parseDeepgramResponse(msg)
	if !ok {
		t.Fatal("expected ok=true")
	}
	assertEqual(t, "text", "the cat sat", tr.Text)
	if end != 2500*time.Millisecond {
		t.Errorf("end = %v, want 2.5s", end)
	}
	if len(tr.Words) != 1 || tr.Words[0].Start != time.Second {
		t.Errorf("words = %+v", tr.Words)
	}

	for _, ignored := range []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"the"}]}}`,
		`{"type":"Metadata"}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
		`not json`,
	} {
		if _, _, ok := parseDeepgramResponse([]byte(ignored)); ok {
			t.Errorf("parseDeepgramResponse(%s): ok=true, want false", ignored)
		}
	}
}

// ---- end-to-end against a fake server ----

func newFakeDeepgram(t *testing.T, finals []string, received *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			typ, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				received.Add(int64(len(msg)))
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}
		for _, text := range finals {
			body := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"` + text + `","confidence":0.8}]}}`
			if err := conn.Write(ctx, websocket.MessageText, []byte(body)); err != nil {
				return
			}
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Metadata"}`))
		conn.Close(websocket.StatusNormalClosure, "")
	}))
}

func TestTranscribe_JoinsFinals(t *testing.T) {
	var received atomic.Int64
	srv := newFakeDeepgram(t, []string{"Max ran", "down the street."}, &received)
	defer srv.Close()

	p, err := New("test-key", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	audio := make([]byte, 20000)
	tr, err := p.Transcribe(ctx, stt.Recording{Audio: audio, Format: stt.FormatPCM})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "Max ran down the street.", tr.Text)
	assertEqual(t, "provider", "deepgram", tr.Provider)
	if got := received.Load(); got != int64(len(audio)) {
		t.Errorf("server received %d bytes, want %d", got, len(audio))
	}
}

func TestTranscribe_NoSpeech(t *testing.T) {
	var received atomic.Int64
	srv := newFakeDeepgram(t, nil, &received)
	defer srv.Close()

	p, _ := New("test-key", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.Transcribe(ctx, stt.Recording{Audio: make([]byte, 100), Format: stt.FormatPCM})
	if !errors.Is(err, stt.ErrEmptyTranscript) {
		t.Fatalf("Transcribe error = %v, want ErrEmptyTranscript", err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
