package reading

import (
	"math"
	"time"
)

const (
	// MinMinutes is the floor applied to the reading duration when computing
	// words correct per minute.
	MinMinutes = 0.1

	// DefaultContextRadius is the number of characters shown on each side of
	// an error when rendering its surrounding passage text.
	DefaultContextRadius = 30
)

// WordsCorrectPerMinute returns round(correct / minutes) where correct is
// totalWords-errorCount clamped at zero and minutes is elapsed floored at
// [MinMinutes].
func WordsCorrectPerMinute(totalWords, errorCount int, elapsed time.Duration) int {
	correct := max(0, totalWords-errorCount)
	minutes := max(MinMinutes, elapsed.Minutes())
	return int(math.Round(float64(correct) / minutes))
}

// Accuracy returns the percentage of passage words read correctly, in
// [0, 100]. A passage without words scores 0.
func Accuracy(totalWords, errorCount int) float64 {
	if totalWords <= 0 {
		return 0
	}
	correct := max(0, totalWords-errorCount)
	return math.Round(float64(correct)/float64(totalWords)*1000) / 10
}

// Improvement returns the percentage change from previous to current WCPM.
// Any reading counts as full improvement over a previous score of zero.
func Improvement(previous, current int) int {
	if previous == 0 {
		return 100
	}
	return int(math.Round(float64(current-previous) / float64(previous) * 100))
}

// Context returns the passage text within radius characters of position.
// Offsets are in runes and clamped to the text.
func Context(text string, position, radius int) string {
	runes := []rune(text)
	if radius < 0 {
		radius = 0
	}
	start := min(len(runes), max(0, position-radius))
	end := min(len(runes), max(start, position+radius))
	return string(runes[start:end])
}
