// Package store defines persistence for assessed reading sessions and the
// errors detected in them.
//
// [MemStore] keeps everything in memory and suits tests and single-process
// deployments; package postgres provides the durable implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"

	"github.com/MrWong99/rocketreaders/pkg/reading"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("store: not found")

// Session is one assessed reading attempt.
type Session struct {
	// ID is assigned by [NewID] when empty on save.
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PassageID string    `json:"passage_id"`
	StartedAt time.Time `json:"started_at"`

	// Duration is the time the child spent reading.
	Duration time.Duration `json:"duration_ns"`

	TotalWords int     `json:"total_words"`
	ErrorCount int     `json:"error_count"`
	WCPM       int     `json:"wcpm"`
	Accuracy   float64 `json:"accuracy"`

	// Transcript is the recognizer output the errors were detected from.
	Transcript string `json:"transcript"`

	// Provider names the STT backend that produced Transcript, or is empty
	// when the transcript was supplied directly.
	Provider string `json:"provider,omitempty"`
}

// ErrorRecord is a stored reading error together with the session fields
// needed to analyse it across sessions.
type ErrorRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	PassageID string    `json:"passage_id"`
	StartedAt time.Time `json:"started_at"`

	reading.ReadingError
}

// ListOptions pages and filters [Store.ListSessions].
type ListOptions struct {
	// Limit caps the number of sessions returned. Zero means no limit.
	Limit int

	// Offset skips that many sessions, newest first.
	Offset int

	// Since excludes sessions that started before it. Zero means no bound.
	Since time.Time
}

// Store persists sessions and their errors. Implementations must be safe for
// concurrent use.
type Store interface {
	// SaveSession stores s and its errors atomically and returns the saved
	// session with its ID filled in.
	SaveSession(ctx context.Context, s Session, errs []reading.ReadingError) (Session, error)

	// GetSession returns the session with the given ID or [ErrNotFound].
	GetSession(ctx context.Context, id string) (Session, error)

	// ListSessions returns userID's sessions, newest first.
	ListSessions(ctx context.Context, userID string, opts ListOptions) ([]Session, error)

	// ListErrors returns the errors of a session ordered by position in the
	// passage. A session without errors yields an empty slice; an unknown
	// session yields [ErrNotFound].
	ListErrors(ctx context.Context, sessionID string) ([]reading.ReadingError, error)

	// UserErrors returns every error of userID's sessions started at or
	// after since, newest session first.
	UserErrors(ctx context.Context, userID string, since time.Time) ([]ErrorRecord, error)

	// LatestWCPM returns the WCPM of userID's most recent session on
	// passageID. ok is false when there is none.
	LatestWCPM(ctx context.Context, userID, passageID string) (wcpm int, ok bool, err error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// NewID returns a new globally unique, time-sortable session ID.
func NewID() string {
	return xid.New().String()
}
