// Package postgres provides a PostgreSQL-backed [store.Store] built on a
// single pgx connection pool.
//
// Usage:
//
//	st, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer st.Close()
//
//	saved, _ := st.SaveSession(ctx, sess, result.Errors)
//	errs, _ := st.ListErrors(ctx, saved.ID)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS reading_sessions (
    id           TEXT              PRIMARY KEY,
    user_id      TEXT              NOT NULL,
    passage_id   TEXT              NOT NULL,
    started_at   TIMESTAMPTZ       NOT NULL DEFAULT now(),
    duration_ns  BIGINT            NOT NULL DEFAULT 0,
    total_words  INTEGER           NOT NULL DEFAULT 0,
    error_count  INTEGER           NOT NULL DEFAULT 0,
    wcpm         INTEGER           NOT NULL DEFAULT 0,
    accuracy     DOUBLE PRECISION  NOT NULL DEFAULT 0,
    transcript   TEXT              NOT NULL DEFAULT '',
    provider     TEXT              NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_reading_sessions_user_started
    ON reading_sessions (user_id, started_at DESC);

CREATE INDEX IF NOT EXISTS idx_reading_sessions_user_passage
    ON reading_sessions (user_id, passage_id, started_at DESC);
`

const ddlErrors = `
CREATE TABLE IF NOT EXISTS reading_errors (
    session_id        TEXT     NOT NULL REFERENCES reading_sessions (id) ON DELETE CASCADE,
    error_id          INTEGER  NOT NULL,
    word              TEXT     NOT NULL,
    position_in_text  INTEGER  NOT NULL,
    error_type        TEXT     NOT NULL CHECK (error_type IN ('omission', 'mispronunciation', 'hesitation')),
    actual            TEXT     NOT NULL DEFAULT '',
    similarity        TEXT     NOT NULL DEFAULT '0.00',
    PRIMARY KEY (session_id, error_id)
);

CREATE INDEX IF NOT EXISTS idx_reading_errors_type
    ON reading_errors (error_type);
`

// Migrate creates the reading_sessions and reading_errors tables. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlErrors} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
