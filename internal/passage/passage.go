// Package passage holds the library of reading passages that children are
// assessed against.
//
// Passages are defined in YAML files:
//
//	passages:
//	  - id: cat-hat
//	    title: "The Cat and the Hat"
//	    author: "Room 4"
//	    grade_level: K
//	    difficulty: B
//	    category: fiction
//	    target_wcpm: 30
//	    content: |
//	      The cat sat on the mat. The cat had a red hat.
//
// Word counts are computed with the same tokenizer the error detector uses,
// so a passage's WordCount always equals the detector's TotalWords.
package passage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Grade is a school grade from kindergarten (0) to third grade (3).
type Grade int

const (
	GradeK Grade = iota
	Grade1
	Grade2
	Grade3
)

// ParseGrade accepts "K" (case-insensitive) or "0" through "3".
func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "k") {
		return GradeK, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(GradeK) || n > int(Grade3) {
		return 0, fmt.Errorf("passage: grade %q is invalid; valid values: K, 1, 2, 3", s)
	}
	return Grade(n), nil
}

// String returns "K" for kindergarten and the grade number otherwise.
func (g Grade) String() string {
	if g == GradeK {
		return "K"
	}
	return strconv.Itoa(int(g))
}

// Valid reports whether g is between K and 3.
func (g Grade) Valid() bool { return g >= GradeK && g <= Grade3 }

// MarshalText implements [encoding.TextMarshaler].
func (g Grade) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (g *Grade) UnmarshalText(b []byte) error {
	v, err := ParseGrade(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// UnmarshalYAML accepts both `grade_level: K` and `grade_level: 2`.
func (g *Grade) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.New("passage: grade_level must be a scalar")
	}
	return g.UnmarshalText([]byte(n.Value))
}

// Passage is one reading text.
type Passage struct {
	ID     string `yaml:"id" json:"id"`
	Title  string `yaml:"title" json:"title"`
	Author string `yaml:"author,omitempty" json:"author,omitempty"`

	// GradeLevel defaults to K when omitted.
	GradeLevel Grade `yaml:"grade_level" json:"grade_level"`

	// Difficulty is a guided-reading level from "A" to "Q". Optional.
	Difficulty string `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`

	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// TargetWCPM is the fluency goal for this passage. Zero means none.
	TargetWCPM int `yaml:"target_wcpm,omitempty" json:"target_wcpm,omitempty"`

	Content string `yaml:"content" json:"content"`

	// WordCount is computed on load and ignored in YAML.
	WordCount int `yaml:"-" json:"word_count"`
}

// ListOptions narrows the result of [Library.List]. All non-zero fields are
// applied as AND conditions.
type ListOptions struct {
	// Grade restricts results to one grade when non-nil.
	Grade *Grade

	Difficulty string
	Category   string

	// Search matches case-insensitively against title and author.
	Search string
}
