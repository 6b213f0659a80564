package analysis

import (
	"testing"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

func TestConfusions(t *testing.T) {
	t.Parallel()

	now := time.Now()
	records := []store.ErrorRecord{
		record("s1", now, "their", reading.Mispronunciation, "there"),
		record("s2", now, "Their", reading.Hesitation, "there"),
		record("s1", now, "cat", reading.Mispronunciation, "kat"),
		// Different sounds: never a confusion.
		record("s1", now, "house", reading.Mispronunciation, "horse"),
		// Omissions have no actual word.
		record("s1", now, "dog", reading.Omission, ""),
	}

	got := Confusions(records, DefaultMinConfusionScore)
	if len(got) != 2 {
		t.Fatalf("Confusions = %+v, want 2 entries", got)
	}
	if got[0].Expected != "their" || got[0].Actual != "there" || got[0].Count != 2 {
		t.Errorf("got[0] = %+v, want their→there twice", got[0])
	}
	if got[1].Expected != "cat" || got[1].Actual != "kat" || got[1].Count != 1 {
		t.Errorf("got[1] = %+v, want cat→kat once", got[1])
	}
	for _, c := range got {
		if c.Score < DefaultMinConfusionScore || c.Score > 1 {
			t.Errorf("%s→%s score = %v, want in [%v, 1]", c.Expected, c.Actual, c.Score, DefaultMinConfusionScore)
		}
	}
}

func TestConfusions_MinScoreFilters(t *testing.T) {
	t.Parallel()

	records := []store.ErrorRecord{
		record("s1", time.Now(), "cat", reading.Mispronunciation, "kat"),
	}
	if got := Confusions(records, 0.99); len(got) != 0 {
		t.Errorf("Confusions with minScore 0.99 = %+v, want none", got)
	}
}

func TestConfusions_Empty(t *testing.T) {
	t.Parallel()

	if got := Confusions(nil, 0); len(got) != 0 {
		t.Errorf("Confusions(nil) = %+v, want empty", got)
	}
}
