package reading

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Levenshtein returns the unit-cost edit distance between a and b, counted in
// runes.
func Levenshtein(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Similarity returns 1 - Levenshtein(a, b)/max(len(a), len(b)) with lengths
// in runes. Two empty strings are fully similar.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}
