package reading

import (
	"strings"
	"unicode"
)

// punctuation is the set of characters ignored when comparing words.
const punctuation = ".,!?;'\"-"

// TokenizePassage splits text into words and records each word's rune offset
// in text. Runs of whitespace separate words; no empty words are produced.
// For text separated by single spaces the offsets are the running sum of
// len(word)+1 starting at 0. Otherwise they stay real offsets into the raw
// passage rather than that running sum, so [Context] snippets cut around an
// error still land on the word when the passage has tabs or double spaces.
func TokenizePassage(text string) Passage {
	var (
		words Passage
		start = -1
		pos   int
	)
	runes := []rune(text)
	for pos = 0; pos < len(runes); pos++ {
		if unicode.IsSpace(runes[pos]) {
			if start >= 0 {
				words = append(words, Word{Text: string(runes[start:pos]), Position: start, EndPosition: pos})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = pos
		}
	}
	if start >= 0 {
		words = append(words, Word{Text: string(runes[start:pos]), Position: start, EndPosition: pos})
	}
	return words
}

// TokenizeTranscript lower-cases text, collapses whitespace and splits it
// into words. Empty or whitespace-only input yields an empty transcript.
func TokenizeTranscript(text string) Transcript {
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 {
		return Transcript{}
	}
	return Transcript(fields)
}

// Clean strips the comparison punctuation from w and lower-cases it.
func Clean(w string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, w))
}

// Equal reports whether a and b are the same word once cleaned.
func Equal(a, b string) bool {
	return Clean(a) == Clean(b)
}
