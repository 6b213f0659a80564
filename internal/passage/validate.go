package passage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

// Validate checks p for required fields and valid values.
//
// Rules:
//   - ID, Title and Content must be non-empty.
//   - Content must contain at least one word.
//   - GradeLevel must be between K and 3.
//   - Difficulty, when set, must be a single letter from A to Q.
//   - TargetWCPM must not be negative.
func Validate(p Passage) error {
	var errs []error

	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if strings.TrimSpace(p.Title) == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}
	if len(reading.TokenizePassage(p.Content)) == 0 {
		errs = append(errs, errors.New("content must contain at least one word"))
	}
	if !p.GradeLevel.Valid() {
		errs = append(errs, fmt.Errorf("grade_level %d is out of range K-3", int(p.GradeLevel)))
	}
	if p.Difficulty != "" && !validDifficulty(p.Difficulty) {
		errs = append(errs, fmt.Errorf("difficulty %q is invalid; valid values: A-Q", p.Difficulty))
	}
	if p.TargetWCPM < 0 {
		errs = append(errs, fmt.Errorf("target_wcpm %d must not be negative", p.TargetWCPM))
	}
	return errors.Join(errs...)
}

func validDifficulty(d string) bool {
	return len(d) == 1 && d[0] >= 'A' && d[0] <= 'Q'
}
