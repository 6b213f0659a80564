package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

// Compile-time interface assertion.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. The zero value is not usable; create one
// with [NewMemStore].
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	errors   map[string][]reading.ReadingError
	byUser   map[string][]string
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]Session),
		errors:   make(map[string][]reading.ReadingError),
		byUser:   make(map[string][]string),
	}
}

// SaveSession implements [Store].
func (m *MemStore) SaveSession(_ context.Context, s Session, errs []reading.ReadingError) (Session, error) {
	if s.UserID == "" {
		return Session{}, errors.New("store: save session: user id is required")
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}

	stored := slices.Clone(errs)
	slices.SortStableFunc(stored, func(a, b reading.ReadingError) int {
		return a.PositionInText - b.PositionInText
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		return Session{}, fmt.Errorf("store: save session: duplicate id %q", s.ID)
	}
	m.sessions[s.ID] = s
	m.errors[s.ID] = stored
	m.byUser[s.UserID] = append(m.byUser[s.UserID], s.ID)
	return s, nil
}

// GetSession implements [Store].
func (m *MemStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("store: get session %q: %w", id, ErrNotFound)
	}
	return s, nil
}

// ListSessions implements [Store].
func (m *MemStore) ListSessions(_ context.Context, userID string, opts ListOptions) ([]Session, error) {
	m.mu.RLock()
	all := m.userSessionsLocked(userID, opts.Since)
	m.mu.RUnlock()

	if opts.Offset >= len(all) {
		return []Session{}, nil
	}
	all = all[max(0, opts.Offset):]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

// ListErrors implements [Store].
func (m *MemStore) ListErrors(_ context.Context, sessionID string) ([]reading.ReadingError, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	errs, ok := m.errors[sessionID]
	if !ok {
		return nil, fmt.Errorf("store: list errors %q: %w", sessionID, ErrNotFound)
	}
	out := slices.Clone(errs)
	if out == nil {
		out = []reading.ReadingError{}
	}
	return out, nil
}

// UserErrors implements [Store].
func (m *MemStore) UserErrors(_ context.Context, userID string, since time.Time) ([]ErrorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []ErrorRecord{}
	for _, s := range m.userSessionsLocked(userID, since) {
		for _, e := range m.errors[s.ID] {
			out = append(out, ErrorRecord{
				SessionID:    s.ID,
				UserID:       s.UserID,
				PassageID:    s.PassageID,
				StartedAt:    s.StartedAt,
				ReadingError: e,
			})
		}
	}
	return out, nil
}

// LatestWCPM implements [Store].
func (m *MemStore) LatestWCPM(_ context.Context, userID, passageID string) (int, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.userSessionsLocked(userID, time.Time{}) {
		if s.PassageID == passageID {
			return s.WCPM, true, nil
		}
	}
	return 0, false, nil
}

// Ping implements [Store]; a MemStore is always reachable.
func (m *MemStore) Ping(context.Context) error { return nil }

// userSessionsLocked returns userID's sessions started at or after since,
// newest first. Ties keep the later-saved session first.
func (m *MemStore) userSessionsLocked(userID string, since time.Time) []Session {
	ids := m.byUser[userID]
	out := make([]Session, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		s := m.sessions[ids[i]]
		if !since.IsZero() && s.StartedAt.Before(since) {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Session) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return out
}
