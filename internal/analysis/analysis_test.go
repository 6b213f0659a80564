package analysis

import (
	"testing"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

func record(sessionID string, started time.Time, word string, typ reading.ErrorType, actual string) store.ErrorRecord {
	return store.ErrorRecord{
		SessionID: sessionID,
		UserID:    "u1",
		StartedAt: started,
		ReadingError: reading.ReadingError{
			Word:      word,
			ErrorType: typ,
			Actual:    actual,
		},
	}
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "", want: PeriodMonth},
		{in: "week", want: PeriodWeek},
		{in: "month", want: PeriodMonth},
		{in: "all", want: PeriodAll},
		{in: "year", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParsePeriod(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePeriod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePeriod(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeriodSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	if got, want := PeriodWeek.Since(now), now.AddDate(0, 0, -7); !got.Equal(want) {
		t.Errorf("week: got %v, want %v", got, want)
	}
	if got, want := PeriodMonth.Since(now), now.AddDate(0, 0, -30); !got.Equal(want) {
		t.Errorf("month: got %v, want %v", got, want)
	}
	if got := PeriodAll.Since(now); !got.IsZero() {
		t.Errorf("all: got %v, want zero time", got)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sessions := []store.Session{
		{ID: "s1", StartedAt: day1, TotalWords: 40},
		{ID: "s2", StartedAt: day2, TotalWords: 30},
		{ID: "s3", StartedAt: day2.Add(time.Hour), TotalWords: 30},
	}
	records := []store.ErrorRecord{
		record("s1", day1, "The", reading.Omission, ""),
		record("s1", day1, "jumped.", reading.Mispronunciation, "jumbled"),
		record("s2", day2, "jumped", reading.Hesitation, "jumpt"),
		record("s2", day2, "frog", reading.Omission, ""),
		record("s3", day2, "the", reading.Omission, ""),
	}

	got := Summarize(sessions, records, 2)

	if got.TotalErrors != 5 || got.Sessions != 3 {
		t.Errorf("TotalErrors=%d Sessions=%d, want 5 and 3", got.TotalErrors, got.Sessions)
	}
	wantTypes := map[reading.ErrorType]int{
		reading.Omission:         3,
		reading.Mispronunciation: 1,
		reading.Hesitation:       1,
	}
	for typ, n := range wantTypes {
		if got.ByType[typ] != n {
			t.Errorf("ByType[%s] = %d, want %d", typ, got.ByType[typ], n)
		}
	}

	// "jumped" and "the" both appear twice; ties are broken alphabetically.
	wantWords := []WordCount{{Word: "jumped", Count: 2}, {Word: "the", Count: 2}}
	if len(got.CommonWords) != len(wantWords) {
		t.Fatalf("CommonWords = %v, want %v", got.CommonWords, wantWords)
	}
	for i := range wantWords {
		if got.CommonWords[i] != wantWords[i] {
			t.Errorf("CommonWords[%d] = %v, want %v", i, got.CommonWords[i], wantWords[i])
		}
	}

	wantDays := []Day{
		{Date: "2026-03-01", Errors: 2, Words: 40, ErrorRate: 5},
		{Date: "2026-03-02", Errors: 3, Words: 60, ErrorRate: 5},
	}
	if len(got.Daily) != len(wantDays) {
		t.Fatalf("Daily = %v, want %v", got.Daily, wantDays)
	}
	for i := range wantDays {
		if got.Daily[i] != wantDays[i] {
			t.Errorf("Daily[%d] = %+v, want %+v", i, got.Daily[i], wantDays[i])
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	got := Summarize(nil, nil, 0)
	if got.TotalErrors != 0 || len(got.ByType) != 0 {
		t.Errorf("got %+v, want an empty summary", got)
	}
	if got.CommonWords == nil || got.Daily == nil {
		t.Error("empty summary must carry non-nil slices so it encodes as []")
	}
}

func TestSummarize_SessionWithoutErrors(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	got := Summarize([]store.Session{{ID: "s1", StartedAt: day, TotalWords: 12}}, nil, 0)
	if len(got.Daily) != 1 {
		t.Fatalf("Daily = %v, want one day", got.Daily)
	}
	if d := got.Daily[0]; d.Errors != 0 || d.Words != 12 || d.ErrorRate != 0 {
		t.Errorf("Daily[0] = %+v, want 0 errors over 12 words", d)
	}
}

func TestSummarize_RateRounding(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	got := Summarize(
		[]store.Session{{ID: "s1", StartedAt: day, TotalWords: 3}},
		[]store.ErrorRecord{record("s1", day, "a", reading.Omission, "")},
		0,
	)
	if got.Daily[0].ErrorRate != 33.33 {
		t.Errorf("ErrorRate = %v, want 33.33", got.Daily[0].ErrorRate)
	}
}
