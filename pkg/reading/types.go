// Package reading detects reading errors by aligning a speech-to-text
// transcript against the passage a child was asked to read.
//
// The alignment is a word-level longest common subsequence. Passage words
// left unaligned are reported as omissions; aligned words whose normalised
// forms differ are classified by Levenshtein similarity into hesitations
// (close misses) and mispronunciations. Transcript words that match nothing
// in the passage are insertions: they are returned for diagnostics but never
// counted as errors.
//
// Everything in this package is pure and safe for concurrent use.
package reading

// ErrorType classifies a single [ReadingError].
type ErrorType string

const (
	// Omission means the passage word has no counterpart in the transcript.
	Omission ErrorType = "omission"

	// Mispronunciation means the word was aligned to a transcript word that
	// differs substantially from it (similarity at or below
	// [HesitationThreshold]).
	Mispronunciation ErrorType = "mispronunciation"

	// Hesitation means the word was aligned to a transcript word that is a
	// close miss (similarity above [HesitationThreshold]).
	Hesitation ErrorType = "hesitation"
)

// HesitationThreshold is the similarity above which a mismatched word counts
// as a hesitation rather than a mispronunciation.
const HesitationThreshold = 0.7

// Valid reports whether t is one of the known error types.
func (t ErrorType) Valid() bool {
	switch t {
	case Omission, Mispronunciation, Hesitation:
		return true
	}
	return false
}

// ReadingError is one detected problem word in a reading attempt.
type ReadingError struct {
	// ID is 1-based and follows detection order.
	ID int `json:"id"`

	// Word is the passage word as written, punctuation included.
	Word string `json:"word"`

	// PositionInText is the character offset of Word in the passage.
	PositionInText int `json:"position_in_text"`

	ErrorType ErrorType `json:"error_type"`

	// Actual is the transcript word aligned to Word. Empty for omissions.
	Actual string `json:"actual"`

	// Similarity is formatted with two decimals, "0.00" for omissions.
	Similarity string `json:"similarity"`
}

// Word is a single passage token with its character offsets.
type Word struct {
	Text        string `json:"text"`
	Position    int    `json:"position"`
	EndPosition int    `json:"end_position"`
}

// Passage is the tokenised form of the canonical text.
type Passage []Word

// Texts returns the bare word strings of p.
func (p Passage) Texts() []string {
	out := make([]string, len(p))
	for i, w := range p {
		out[i] = w.Text
	}
	return out
}

// Transcript is the normalised, tokenised recognizer output.
type Transcript []string

// Pair links a passage word to the transcript word it was aligned with.
type Pair struct {
	OriginalIndex    int `json:"original_index"`
	TranscribedIndex int `json:"transcribed_index"`
}

// Insertion is a transcript word that matched nothing in the passage.
type Insertion struct {
	Index int    `json:"index"`
	Word  string `json:"word"`
}

// Result is the full output of [Detect].
type Result struct {
	Errors     []ReadingError `json:"errors"`
	Insertions []Insertion    `json:"insertions"`
	Alignment  []Pair         `json:"alignment"`

	// Substitutions pairs unaligned passage and transcript words that sit in
	// the same gap of the alignment.
	Substitutions []Pair `json:"substitutions"`

	// TotalWords is the number of words in the passage.
	TotalWords int `json:"total_words"`

	// TranscriptWords is the number of words in the transcript.
	TranscriptWords int `json:"transcript_words"`
}

// Count returns how many errors of type t r holds.
func (r Result) Count(t ErrorType) int {
	n := 0
	for _, e := range r.Errors {
		if e.ErrorType == t {
			n++
		}
	}
	return n
}
