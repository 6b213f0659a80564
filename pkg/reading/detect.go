package reading

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Detect aligns transcribedText against originalText and returns the reading
// errors found, in passage order.
//
// Passage words absent from the alignment and from every substitution are
// omissions. Substituted words are hesitations when their similarity exceeds
// [HesitationThreshold] and mispronunciations otherwise. Unmatched transcript
// words are returned as insertions and are never counted as errors.
//
// Detect never fails: an empty passage yields no errors and an empty
// transcript yields one omission per passage word.
func Detect(originalText, transcribedText string) Result {
	passage := TokenizePassage(originalText)
	transcript := TokenizeTranscript(transcribedText)
	original := passage.Texts()

	alignment := Align(original, transcript)
	subs := Substitutions(original, transcript, alignment)

	matched := make(map[int]int, len(alignment)+len(subs))
	usedT := make(map[int]bool, len(alignment)+len(subs))
	for _, p := range alignment {
		matched[p.OriginalIndex] = p.TranscribedIndex
		usedT[p.TranscribedIndex] = true
	}
	for _, p := range subs {
		matched[p.OriginalIndex] = p.TranscribedIndex
		usedT[p.TranscribedIndex] = true
	}

	res := Result{
		Errors:          []ReadingError{},
		Insertions:      []Insertion{},
		Alignment:       alignment,
		Substitutions:   subs,
		TotalWords:      len(passage),
		TranscriptWords: len(transcript),
	}
	if res.Alignment == nil {
		res.Alignment = []Pair{}
	}
	if res.Substitutions == nil {
		res.Substitutions = []Pair{}
	}

	for i, w := range passage {
		ti, ok := matched[i]
		if !ok {
			res.Errors = append(res.Errors, ReadingError{
				ID:             len(res.Errors) + 1,
				Word:           strings.TrimSpace(w.Text),
				PositionInText: w.Position,
				ErrorType:      Omission,
				Actual:         "",
				Similarity:     "0.00",
			})
			continue
		}

		actual := transcript[ti]
		cleanO, cleanT := Clean(w.Text), Clean(actual)
		if cleanO == cleanT {
			continue
		}
		sim := Similarity(cleanT, cleanO)
		kind := Mispronunciation
		if sim > HesitationThreshold {
			kind = Hesitation
		}
		res.Errors = append(res.Errors, ReadingError{
			ID:             len(res.Errors) + 1,
			Word:           strings.TrimSpace(w.Text),
			PositionInText: w.Position,
			ErrorType:      kind,
			Actual:         actual,
			Similarity:     FormatSimilarity(sim),
		})
	}

	for j, t := range transcript {
		if !usedT[j] {
			res.Insertions = append(res.Insertions, Insertion{Index: j, Word: t})
		}
	}
	return res
}

// FormatSimilarity renders s with two decimals, clamped to [0, 1]. Ties
// round up on the exact binary value of s, so 0.625 renders as "0.63" where
// %.2f would give "0.62".
func FormatSimilarity(s float64) string {
	if math.IsNaN(s) {
		s = 0
	}
	r := new(big.Rat).SetFloat64(min(1, max(0, s)))
	r.Mul(r, big.NewRat(100, 1)).Add(r, big.NewRat(1, 2))
	// r is positive, so truncating division is the floor.
	n := new(big.Int).Quo(r.Num(), r.Denom()).Int64()
	return fmt.Sprintf("%d.%02d", n/100, n%100)
}
