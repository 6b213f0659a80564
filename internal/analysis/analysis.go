// Package analysis aggregates a reader's stored errors into the patterns an
// educator looks at, such as the words that keep tripping a child up and the
// daily error rate.
package analysis

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

// DefaultTopWords is the number of common error words reported when the
// caller does not ask for a specific count.
const DefaultTopWords = 10

// Period selects how far back an analysis reaches.
type Period string

const (
	// PeriodWeek covers the last 7 days.
	PeriodWeek Period = "week"
	// PeriodMonth covers the last 30 days. It is the default.
	PeriodMonth Period = "month"
	// PeriodAll has no lower bound.
	PeriodAll Period = "all"
)

// ParsePeriod parses s into a [Period]. The empty string selects
// [PeriodMonth].
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodMonth, nil
	case PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	}
	return "", fmt.Errorf("analysis: unknown period %q (want week, month or all)", s)
}

// Since returns the earliest start time included in p relative to now. The
// zero time means no bound.
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodAll:
		return time.Time{}
	default:
		return now.AddDate(0, 0, -30)
	}
}

// WordCount is one frequently missed word.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Day holds the error totals of one calendar day (UTC).
type Day struct {
	Date   string `json:"date"`
	Errors int    `json:"errors"`
	Words  int    `json:"words"`

	// ErrorRate is Errors per hundred passage words read that day, rounded to
	// two decimals.
	ErrorRate float64 `json:"error_rate"`
}

// Summary is the aggregate view over a set of errors.
type Summary struct {
	TotalErrors int                       `json:"total_errors"`
	Sessions    int                       `json:"sessions"`
	ByType      map[reading.ErrorType]int `json:"error_types"`
	CommonWords []WordCount               `json:"common_error_words"`
	Daily       []Day                     `json:"progression"`
}

// Summarize aggregates records, the errors of sessions. Sessions contribute
// the word totals behind the daily error rate; records whose session is not
// among sessions still count towards every other figure. topN caps
// CommonWords; zero or less uses [DefaultTopWords].
func Summarize(sessions []store.Session, records []store.ErrorRecord, topN int) Summary {
	if topN <= 0 {
		topN = DefaultTopWords
	}
	sum := Summary{
		TotalErrors: len(records),
		Sessions:    len(sessions),
		ByType:      make(map[reading.ErrorType]int, 3),
		CommonWords: []WordCount{},
		Daily:       []Day{},
	}

	days := make(map[string]*Day)
	day := func(t time.Time) *Day {
		key := t.UTC().Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &Day{Date: key}
			days[key] = d
		}
		return d
	}
	for _, s := range sessions {
		day(s.StartedAt).Words += s.TotalWords
	}

	words := make(map[string]int)
	for _, r := range records {
		sum.ByType[r.ErrorType]++
		day(r.StartedAt).Errors++
		if w := reading.Clean(r.Word); w != "" {
			words[w]++
		}
	}

	for w, n := range words {
		sum.CommonWords = append(sum.CommonWords, WordCount{Word: w, Count: n})
	}
	slices.SortFunc(sum.CommonWords, func(a, b WordCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if len(sum.CommonWords) > topN {
		sum.CommonWords = sum.CommonWords[:topN]
	}

	for _, d := range days {
		if d.Words > 0 {
			d.ErrorRate = math.Round(float64(d.Errors)/float64(d.Words)*10000) / 100
		}
		sum.Daily = append(sum.Daily, *d)
	}
	slices.SortFunc(sum.Daily, func(a, b Day) int { return cmp.Compare(a.Date, b.Date) })
	return sum
}
