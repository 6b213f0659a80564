package reading_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

func TestTokenizePassage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want reading.Passage
	}{
		{
			name: "single spaces",
			text: "Max ran down",
			want: reading.Passage{
				{Text: "Max", Position: 0, EndPosition: 3},
				{Text: "ran", Position: 4, EndPosition: 7},
				{Text: "down", Position: 8, EndPosition: 12},
			},
		},
		{
			name: "repeated and leading whitespace",
			text: "  Max  ran\n",
			want: reading.Passage{
				{Text: "Max", Position: 2, EndPosition: 5},
				{Text: "ran", Position: 7, EndPosition: 10},
			},
		},
		{
			name: "multibyte runes count once",
			text: "café au lait",
			want: reading.Passage{
				{Text: "café", Position: 0, EndPosition: 4},
				{Text: "au", Position: 5, EndPosition: 7},
				{Text: "lait", Position: 8, EndPosition: 12},
			},
		},
		{name: "empty", text: "", want: nil},
		{name: "whitespace only", text: " \t ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := reading.TokenizePassage(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("TokenizePassage(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("word[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTokenizePassage_OffsetsIndexRawText(t *testing.T) {
	t.Parallel()

	text := "Max  ran\tdown   the street."
	runes := []rune(text)
	for _, w := range reading.TokenizePassage(text) {
		if got := string(runes[w.Position:w.EndPosition]); got != w.Text {
			t.Errorf("text[%d:%d] = %q, want %q", w.Position, w.EndPosition, got, w.Text)
		}
		n := len([]rune(w.Text))
		if ctx := reading.Context(text, w.Position, n); !strings.Contains(ctx, w.Text) {
			t.Errorf("Context(%d, %d) = %q, does not contain %q", w.Position, n, ctx, w.Text)
		}
	}
}

func TestTokenizeTranscript(t *testing.T) {
	t.Parallel()

	got := reading.TokenizeTranscript("  The  CAT\tsat.\n")
	want := []string{"the", "cat", "sat."}
	if len(got) != len(want) {
		t.Fatalf("TokenizeTranscript = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := reading.TokenizeTranscript("   "); got == nil || len(got) != 0 {
		t.Errorf("TokenizeTranscript(blank) = %#v, want empty non-nil", got)
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Hello,":     "hello",
		"\"Stop!\"":  "stop",
		"don't":      "dont",
		"well-known": "wellknown",
		"...":        "",
	}
	for in, want := range tests {
		if got := reading.Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildTable(t *testing.T) {
	t.Parallel()

	original := []string{"the", "cat", "sat"}
	transcribed := []string{"The", "cat", "on", "sat."}
	dp := reading.BuildTable(original, transcribed)

	if len(dp) != 4 || len(dp[0]) != 5 {
		t.Fatalf("table is %dx%d, want 4x5", len(dp), len(dp[0]))
	}
	for j := range dp[0] {
		if dp[0][j] != 0 {
			t.Errorf("dp[0][%d] = %d, want 0", j, dp[0][j])
		}
	}
	for i := range dp {
		if dp[i][0] != 0 {
			t.Errorf("dp[%d][0] = %d, want 0", i, dp[i][0])
		}
	}
	if dp[3][4] != 3 {
		t.Errorf("dp[3][4] = %d, want 3", dp[3][4])
	}
}

func TestBacktrack_TieBreak(t *testing.T) {
	t.Parallel()

	original := []string{"a", "b"}
	transcribed := []string{"b", "a"}

	got := reading.Align(original, transcribed)
	want := []reading.Pair{{OriginalIndex: 1, TranscribedIndex: 0}}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Align(%q, %q) = %+v, want %+v", original, transcribed, got, want)
	}
}

func TestBacktrack_MismatchedTable(t *testing.T) {
	t.Parallel()

	if got := reading.Backtrack([][]int{{0}}, []string{"a"}, []string{"a"}); got != nil {
		t.Errorf("Backtrack with short table = %+v, want nil", got)
	}
}

func TestSubstitutions(t *testing.T) {
	t.Parallel()

	original := []string{"the", "big", "red", "dog"}
	transcribed := []string{"the", "bog", "dog"}
	alignment := reading.Align(original, transcribed)

	got := reading.Substitutions(original, transcribed, alignment)
	want := []reading.Pair{{OriginalIndex: 1, TranscribedIndex: 1}}
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Substitutions = %+v, want %+v", got, want)
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"saw", "sawed", 2},
		{"same", "same", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		if got := reading.Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"sawed", "saw", 0.6},
		{"", "", 1},
		{"cat", "dog", 0},
		{"litle", "little", 1 - 1.0/6},
	}
	for _, tt := range tests {
		got := reading.Similarity(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
