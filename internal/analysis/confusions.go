package analysis

import (
	"cmp"
	"slices"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

// DefaultMinConfusionScore is the Jaro-Winkler similarity a sound-alike pair
// needs before it is reported as a confusion.
const DefaultMinConfusionScore = 0.6

// Confusion is a passage word the reader repeatedly replaced by a word that
// sounds like it, e.g. "though" read as "through".
type Confusion struct {
	Expected string  `json:"expected"`
	Actual   string  `json:"actual"`
	Count    int     `json:"count"`
	Score    float64 `json:"score"`
}

// Confusions returns the mispronunciations and hesitations in records whose
// expected and actual words share a Double Metaphone code and reach minScore
// Jaro-Winkler similarity. Identical pairs are merged; the result is ordered
// by count, then score, both descending.
func Confusions(records []store.ErrorRecord, minScore float64) []Confusion {
	type key struct{ expected, actual string }
	byPair := make(map[key]*Confusion)

	for _, r := range records {
		if r.ErrorType == reading.Omission {
			continue
		}
		expected, actual := reading.Clean(r.Word), reading.Clean(r.Actual)
		if expected == "" || actual == "" || expected == actual {
			continue
		}
		k := key{expected, actual}
		if c, ok := byPair[k]; ok {
			c.Count++
			continue
		}
		if !soundAlike(expected, actual) {
			continue
		}
		score := matchr.JaroWinkler(expected, actual, false)
		if score < minScore {
			continue
		}
		byPair[k] = &Confusion{Expected: expected, Actual: actual, Count: 1, Score: score}
	}

	out := make([]Confusion, 0, len(byPair))
	for _, c := range byPair {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Confusion) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Expected, b.Expected); c != 0 {
			return c
		}
		return cmp.Compare(a.Actual, b.Actual)
	})
	return out
}

// soundAlike reports whether a and b share a primary or secondary Double
// Metaphone code. Words without consonants produce no codes and never match.
func soundAlike(a, b string) bool {
	codesA := codes(a)
	for c := range codes(b) {
		if _, ok := codesA[c]; ok {
			return true
		}
	}
	return false
}

func codes(w string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(w)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}
