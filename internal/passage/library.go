package passage

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned by [Library.Get] when no passage has the ID.
var ErrNotFound = errors.New("passage not found")

// ErrDuplicateID is returned by [Library.Add] when the ID is taken.
var ErrDuplicateID = errors.New("passage with that ID already exists")

// Library is a thread-safe, in-memory passage collection.
type Library struct {
	mu       sync.RWMutex
	passages map[string]Passage
}

// NewLibrary returns an empty [Library].
func NewLibrary() *Library {
	return &Library{passages: make(map[string]Passage)}
}

// Add normalises, validates and stores p.
func (l *Library) Add(p Passage) error {
	p = Normalize(p)
	if err := Validate(p); err != nil {
		return fmt.Errorf("passage %q: %w", p.ID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.passages[p.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID)
	}
	l.passages[p.ID] = p
	return nil
}

// Get returns the passage with the given ID or [ErrNotFound].
func (l *Library) Get(id string) (Passage, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.passages[id]
	if !ok {
		return Passage{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return p, nil
}

// List returns the passages matching opts ordered by grade, then difficulty,
// then ID.
func (l *Library) List(opts ListOptions) []Passage {
	search := strings.ToLower(strings.TrimSpace(opts.Search))

	l.mu.RLock()
	out := make([]Passage, 0, len(l.passages))
	for _, p := range l.passages {
		if opts.Grade != nil && p.GradeLevel != *opts.Grade {
			continue
		}
		if opts.Difficulty != "" && !strings.EqualFold(p.Difficulty, opts.Difficulty) {
			continue
		}
		if opts.Category != "" && !strings.EqualFold(p.Category, opts.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Author), search) {
			continue
		}
		out = append(out, p)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b Passage) int {
		return cmp.Or(
			cmp.Compare(a.GradeLevel, b.GradeLevel),
			cmp.Compare(a.Difficulty, b.Difficulty),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out
}

// Len returns the number of passages.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.passages)
}

// Replace swaps the library content for the passages of other in one step,
// so readers never observe a half-loaded library during a hot reload.
func (l *Library) Replace(other *Library) {
	other.mu.RLock()
	next := make(map[string]Passage, len(other.passages))
	for id, p := range other.passages {
		next[id] = p
	}
	other.mu.RUnlock()

	l.mu.Lock()
	l.passages = next
	l.mu.Unlock()
}
