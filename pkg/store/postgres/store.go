package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/rocketreaders/pkg/reading"
	"github.com/MrWong99/rocketreaders/pkg/store"
)

// Compile-time interface assertion.
var _ store.Store = (*Store)(nil)

// Store implements [store.Store] on PostgreSQL. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, pings it and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSession implements [store.Store]. The session row and all error rows
// are written in one transaction.
func (s *Store) SaveSession(ctx context.Context, sess store.Session, errs []reading.ReadingError) (store.Session, error) {
	if sess.UserID == "" {
		return store.Session{}, errors.New("postgres store: save session: user id is required")
	}
	if sess.ID == "" {
		sess.ID = store.NewID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres store: save session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qSession = `
		INSERT INTO reading_sessions
		    (id, user_id, passage_id, started_at, duration_ns, total_words,
		     error_count, wcpm, accuracy, transcript, provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := tx.Exec(ctx, qSession,
		sess.ID,
		sess.UserID,
		sess.PassageID,
		sess.StartedAt,
		sess.Duration.Nanoseconds(),
		sess.TotalWords,
		sess.ErrorCount,
		sess.WCPM,
		sess.Accuracy,
		sess.Transcript,
		sess.Provider,
	); err != nil {
		return store.Session{}, fmt.Errorf("postgres store: save session: %w", err)
	}

	if len(errs) > 0 {
		rows := make([][]any, len(errs))
		for i, e := range errs {
			rows[i] = []any{sess.ID, e.ID, e.Word, e.PositionInText, string(e.ErrorType), e.Actual, e.Similarity}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"reading_errors"},
			[]string{"session_id", "error_id", "word", "position_in_text", "error_type", "actual", "similarity"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return store.Session{}, fmt.Errorf("postgres store: save errors: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Session{}, fmt.Errorf("postgres store: save session: commit: %w", err)
	}
	return sess, nil
}

const sessionColumns = `id, user_id, passage_id, started_at, duration_ns, total_words,
	error_count, wcpm, accuracy, transcript, provider`

// GetSession implements [store.Store].
func (s *Store) GetSession(ctx context.Context, id string) (store.Session, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+sessionColumns+" FROM reading_sessions WHERE id = $1", id)
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres store: get session: %w", err)
	}
	sess, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Session{}, fmt.Errorf("postgres store: get session %q: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("postgres store: get session: %w", err)
	}
	return sess, nil
}

// ListSessions implements [store.Store].
func (s *Store) ListSessions(ctx context.Context, userID string, opts store.ListOptions) ([]store.Session, error) {
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"user_id = $1"}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "started_at >= "+next(opts.Since))
	}
	q := "SELECT " + sessionColumns + "\n" +
		"FROM   reading_sessions\n" +
		"WHERE  " + strings.Join(conditions, " AND ") + "\n" +
		"ORDER  BY started_at DESC, id DESC"
	if opts.Limit > 0 {
		q += "\nLIMIT " + next(opts.Limit)
	}
	if opts.Offset > 0 {
		q += "\nOFFSET " + next(opts.Offset)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	return sessions, nil
}

// ListErrors implements [store.Store].
func (s *Store) ListErrors(ctx context.Context, sessionID string) ([]reading.ReadingError, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM reading_sessions WHERE id = $1)", sessionID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres store: list errors: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("postgres store: list errors %q: %w", sessionID, store.ErrNotFound)
	}

	const q = `
		SELECT error_id, word, position_in_text, error_type, actual, similarity
		FROM   reading_errors
		WHERE  session_id = $1
		ORDER  BY position_in_text, error_id`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list errors: %w", err)
	}
	errs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reading.ReadingError, error) {
		var e reading.ReadingError
		err := row.Scan(&e.ID, &e.Word, &e.PositionInText, &e.ErrorType, &e.Actual, &e.Similarity)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list errors: scan: %w", err)
	}
	if errs == nil {
		errs = []reading.ReadingError{}
	}
	return errs, nil
}

// UserErrors implements [store.Store].
func (s *Store) UserErrors(ctx context.Context, userID string, since time.Time) ([]store.ErrorRecord, error) {
	const q = `
		SELECT s.id, s.user_id, s.passage_id, s.started_at,
		       e.error_id, e.word, e.position_in_text, e.error_type, e.actual, e.similarity
		FROM   reading_errors e
		JOIN   reading_sessions s ON s.id = e.session_id
		WHERE  s.user_id = $1
		  AND  ($2::timestamptz IS NULL OR s.started_at >= $2)
		ORDER  BY s.started_at DESC, s.id DESC, e.position_in_text, e.error_id`

	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}
	rows, err := s.pool.Query(ctx, q, userID, sinceArg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: user errors: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ErrorRecord, error) {
		var r store.ErrorRecord
		err := row.Scan(
			&r.SessionID, &r.UserID, &r.PassageID, &r.StartedAt,
			&r.ID, &r.Word, &r.PositionInText, &r.ErrorType, &r.Actual, &r.Similarity,
		)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: user errors: scan: %w", err)
	}
	if records == nil {
		records = []store.ErrorRecord{}
	}
	return records, nil
}

// LatestWCPM implements [store.Store].
func (s *Store) LatestWCPM(ctx context.Context, userID, passageID string) (int, bool, error) {
	const q = `
		SELECT wcpm
		FROM   reading_sessions
		WHERE  user_id = $1 AND passage_id = $2
		ORDER  BY started_at DESC, id DESC
		LIMIT  1`
	var wcpm int
	err := s.pool.QueryRow(ctx, q, userID, passageID).Scan(&wcpm)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres store: latest wcpm: %w", err)
	}
	return wcpm, true, nil
}

func scanSession(row pgx.CollectableRow) (store.Session, error) {
	var (
		sess       store.Session
		durationNS int64
	)
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.PassageID,
		&sess.StartedAt,
		&durationNS,
		&sess.TotalWords,
		&sess.ErrorCount,
		&sess.WCPM,
		&sess.Accuracy,
		&sess.Transcript,
		&sess.Provider,
	); err != nil {
		return store.Session{}, err
	}
	sess.Duration = time.Duration(durationNS)
	return sess, nil
}
