package analysis

// Progression is the suggested difficulty for a reader's next passage.
type Progression string

const (
	ProgressionLower  Progression = "lower"
	ProgressionSame   Progression = "same"
	ProgressionHigher Progression = "higher"
)

// Recommend suggests a difficulty change after an attempt. Below 95%
// accuracy the reader should drop to easier material. Above 98% accuracy
// with a WCPM more than 10% over the passage target the reader can move up.
// A targetWCPM of zero means the passage has no target and only accuracy
// decides.
func Recommend(accuracy float64, wcpm, targetWCPM int) Progression {
	switch {
	case accuracy < 95:
		return ProgressionLower
	case accuracy > 98 && float64(wcpm) > float64(targetWCPM)*1.1:
		return ProgressionHigher
	default:
		return ProgressionSame
	}
}

// GoalAchieved reports whether wcpm meets targetWCPM. A passage without a
// target has no goal to meet.
func GoalAchieved(wcpm, targetWCPM int) bool {
	return targetWCPM > 0 && wcpm >= targetWCPM
}
