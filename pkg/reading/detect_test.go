package reading_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"testing"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

func TestDetect_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		original   string
		transcript string
		want       []reading.ReadingError
	}{
		{
			name:       "identical reading",
			original:   "Max was a little brown puppy",
			transcript: "Max was a little brown puppy",
			want:       nil,
		},
		{
			name:       "skipped word",
			original:   "Max ran down the street",
			transcript: "Max ran the street",
			want: []reading.ReadingError{
				{ID: 1, Word: "down", PositionInText: 8, ErrorType: reading.Omission, Actual: "", Similarity: "0.00"},
			},
		},
		{
			name:       "wrong word form",
			original:   "He saw many new things",
			transcript: "He sawed many new things",
			want: []reading.ReadingError{
				{ID: 1, Word: "saw", PositionInText: 3, ErrorType: reading.Mispronunciation, Actual: "sawed", Similarity: "0.60"},
			},
		},
		{
			name:       "close miss",
			original:   "Max was a little brown puppy",
			transcript: "max was a litle brown puppy",
			want: []reading.ReadingError{
				{ID: 1, Word: "little", PositionInText: 10, ErrorType: reading.Hesitation, Actual: "litle", Similarity: "0.83"},
			},
		},
		{
			name:       "unrelated word",
			original:   "The dog ran home",
			transcript: "the cat ran home",
			want: []reading.ReadingError{
				{ID: 1, Word: "dog", PositionInText: 4, ErrorType: reading.Mispronunciation, Actual: "cat", Similarity: "0.00"},
			},
		},
		{
			name:       "substitution and omission in one gap",
			original:   "the big red dog",
			transcript: "the bog dog",
			want: []reading.ReadingError{
				{ID: 1, Word: "big", PositionInText: 4, ErrorType: reading.Mispronunciation, Actual: "bog", Similarity: "0.67"},
				{ID: 2, Word: "red", PositionInText: 8, ErrorType: reading.Omission, Actual: "", Similarity: "0.00"},
			},
		},
		{
			name:       "exact half rounds up",
			original:   "the elephant ran",
			transcript: "the elephxyz ran",
			want: []reading.ReadingError{
				{ID: 1, Word: "elephant", PositionInText: 4, ErrorType: reading.Mispronunciation, Actual: "elephxyz", Similarity: "0.63"},
			},
		},
		{
			name:       "low exact half rounds up",
			original:   "the elephant ran",
			transcript: "the abcdefgt ran",
			want: []reading.ReadingError{
				{ID: 1, Word: "elephant", PositionInText: 4, ErrorType: reading.Mispronunciation, Actual: "abcdefgt", Similarity: "0.13"},
			},
		},
		{
			name:       "case and punctuation ignored",
			original:   "Max ran, quickly! \"Stop,\" said Mom.",
			transcript: "max ran quickly stop said mom",
			want:       nil,
		},
		{
			name:       "extra words are not errors",
			original:   "the cat sat",
			transcript: "the big cat sat down",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := reading.Detect(tt.original, tt.transcript).Errors
			if len(got) != len(tt.want) {
				t.Fatalf("Detect(%q, %q): got %d errors %+v, want %d", tt.original, tt.transcript, len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("error[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFormatSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0.00"},
		{in: 1, want: "1.00"},
		{in: 0.125, want: "0.13"},
		{in: 0.375, want: "0.38"},
		{in: 0.625, want: "0.63"},
		{in: 0.875, want: "0.88"},
		{in: 1 - 1.0/3, want: "0.67"},
		{in: 5.0 / 6, want: "0.83"},
		{in: 0.6, want: "0.60"},
		{in: -0.4, want: "0.00"},
		{in: 1.7, want: "1.00"},
	}
	for _, tt := range tests {
		if got := reading.FormatSimilarity(tt.in); got != tt.want {
			t.Errorf("FormatSimilarity(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Insertions are logged by the caller, which has the request context.
func TestDetect_Silent(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	res := reading.Detect("the cat sat", "the big cat sat down")
	if len(res.Insertions) != 2 {
		t.Fatalf("insertions = %+v, want 2", res.Insertions)
	}
	if buf.Len() != 0 {
		t.Errorf("Detect logged: %s", buf.String())
	}
}

func TestDetect_FullOmission(t *testing.T) {
	t.Parallel()

	for _, transcript := range []string{"", "   \t\n"} {
		res := reading.Detect("The cat sat.", transcript)
		wantWords := []string{"The", "cat", "sat."}
		wantPos := []int{0, 4, 8}
		if len(res.Errors) != len(wantWords) {
			t.Fatalf("Detect with transcript %q: got %d errors, want %d", transcript, len(res.Errors), len(wantWords))
		}
		for i, e := range res.Errors {
			if e.ID != i+1 {
				t.Errorf("error[%d].ID = %d, want %d", i, e.ID, i+1)
			}
			if e.ErrorType != reading.Omission {
				t.Errorf("error[%d].ErrorType = %q, want omission", i, e.ErrorType)
			}
			if e.Word != wantWords[i] {
				t.Errorf("error[%d].Word = %q, want %q", i, e.Word, wantWords[i])
			}
			if e.PositionInText != wantPos[i] {
				t.Errorf("error[%d].PositionInText = %d, want %d", i, e.PositionInText, wantPos[i])
			}
			if e.Actual != "" || e.Similarity != "0.00" {
				t.Errorf("error[%d] actual=%q similarity=%q, want \"\" and \"0.00\"", i, e.Actual, e.Similarity)
			}
		}
	}
}

func TestDetect_EmptyPassage(t *testing.T) {
	t.Parallel()

	for _, transcript := range []string{"", "some words were spoken"} {
		res := reading.Detect("", transcript)
		if len(res.Errors) != 0 {
			t.Errorf("Detect(\"\", %q): got %d errors, want 0", transcript, len(res.Errors))
		}
		if res.TotalWords != 0 {
			t.Errorf("TotalWords = %d, want 0", res.TotalWords)
		}
	}
}

func TestDetect_Identity(t *testing.T) {
	t.Parallel()

	texts := []string{
		"Once upon a time, there was a little red hen.",
		"The sun is hot. The sand is soft!",
		"Can you see the big blue whale?",
		"single",
	}
	for _, text := range texts {
		if errs := reading.Detect(text, text).Errors; len(errs) != 0 {
			t.Errorf("Detect(%q, same): got %d errors %+v, want 0", text, len(errs), errs)
		}
	}
}

func TestDetect_Invariants(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"Max ran down the street to see his friend", "max down street to see see friend"},
		{"The quick brown fox jumps over the lazy dog", "a quick brawn fax jumped over lazy dogs"},
		{"one two three four five", "five four three two one"},
		{"apples and bananas", "completely different words here"},
		{"It was a sunny day at the park.", "it was um a sunny sunny day at at the the park"},
	}

	for _, p := range pairs {
		res := reading.Detect(p[0], p[1])

		prev := -1
		for i, e := range res.Errors {
			if e.ID != i+1 {
				t.Errorf("Detect(%q): error[%d].ID = %d, want %d", p[0], i, e.ID, i+1)
			}
			if e.PositionInText < prev {
				t.Errorf("Detect(%q): positions not monotonic at %d: %d < %d", p[0], i, e.PositionInText, prev)
			}
			prev = e.PositionInText

			if !e.ErrorType.Valid() {
				t.Errorf("Detect(%q): invalid error type %q", p[0], e.ErrorType)
			}
			sim, err := strconv.ParseFloat(e.Similarity, 64)
			if err != nil {
				t.Fatalf("Detect(%q): similarity %q does not parse: %v", p[0], e.Similarity, err)
			}
			if sim < 0 || sim > 1 {
				t.Errorf("Detect(%q): similarity %v out of [0,1]", p[0], sim)
			}
			if e.ErrorType == reading.Hesitation && sim <= reading.HesitationThreshold {
				t.Errorf("Detect(%q): hesitation with similarity %v", p[0], sim)
			}
		}

		for k := 1; k < len(res.Alignment); k++ {
			a, b := res.Alignment[k-1], res.Alignment[k]
			if b.OriginalIndex <= a.OriginalIndex || b.TranscribedIndex <= a.TranscribedIndex {
				t.Errorf("Detect(%q): alignment not strictly increasing: %+v then %+v", p[0], a, b)
			}
		}

		matched := len(res.Alignment) + len(res.Substitutions)
		if got := matched + len(res.Insertions); got != res.TranscriptWords {
			t.Errorf("Detect(%q): matched %d + insertions %d != transcript words %d", p[0], matched, len(res.Insertions), res.TranscriptWords)
		}
	}
}

func TestDetect_Idempotent(t *testing.T) {
	t.Parallel()

	original := "The little bird sang a happy song in the tall green tree."
	transcript := "the litle bird sing a song in in the tall tree"

	first, err := json.Marshal(reading.Detect(original, transcript))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 5 {
		again, err := json.Marshal(reading.Detect(original, transcript))
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("Detect output changed between runs:\n%s\n%s", first, again)
		}
	}
}

func TestDetect_Insertions(t *testing.T) {
	t.Parallel()

	res := reading.Detect("the cat sat", "the big cat sat")
	if len(res.Insertions) != 1 {
		t.Fatalf("Insertions = %+v, want exactly one", res.Insertions)
	}
	if got := res.Insertions[0]; got.Index != 1 || got.Word != "big" {
		t.Errorf("Insertions[0] = %+v, want {Index:1 Word:big}", got)
	}
}

func TestReadingError_JSON(t *testing.T) {
	t.Parallel()

	e := reading.ReadingError{ID: 1, Word: "saw", PositionInText: 3, ErrorType: reading.Mispronunciation, Actual: "sawed", Similarity: "0.60"}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"id":1,"word":"saw","position_in_text":3,"error_type":"mispronunciation","actual":"sawed","similarity":"0.60"}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}
}
