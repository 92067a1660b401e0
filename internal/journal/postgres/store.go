// Package postgres writes journal entries to a PostgreSQL table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/pinocchio/internal/journal"
)

const ddlJournal = `
CREATE TABLE IF NOT EXISTS journal_entries (
    id          BIGSERIAL    PRIMARY KEY,
    recorded_at TIMESTAMPTZ  NOT NULL,
    session_id  UUID         NOT NULL,
    turn        INT          NOT NULL,
    outcome     TEXT         NOT NULL,
    heard       TEXT         NOT NULL DEFAULT '',
    language    TEXT         NOT NULL DEFAULT '',
    route       TEXT         NOT NULL DEFAULT '',
    response    TEXT         NOT NULL DEFAULT '',
    error       TEXT         NOT NULL DEFAULT '',
    listen_ms   BIGINT       NOT NULL DEFAULT 0,
    stt_ms      BIGINT       NOT NULL DEFAULT 0,
    tts_ms      BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_session
    ON journal_entries (session_id, turn);
`

// Migrate creates the journal table. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlJournal); err != nil {
		return fmt.Errorf("journal postgres: migrate: %w", err)
	}
	return nil
}

var _ journal.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [journal.Store]. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Record implements [journal.Store].
func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_entries
		    (recorded_at, session_id, turn, outcome, heard, language, route, response, error, listen_ms, stt_ms, tts_ms)
		VALUES (@time, @session, @turn, @outcome, @heard, @language, @route, @response, @error, @listen, @stt, @tts)`,
		pgx.NamedArgs{
			"time":     e.Time,
			"session":  e.SessionID,
			"turn":     e.Turn,
			"outcome":  e.Outcome,
			"heard":    e.Heard,
			"language": e.Language,
			"route":    e.Route,
			"response": e.Response,
			"error":    e.Error,
			"listen":   e.ListenMs,
			"stt":      e.STTMs,
			"tts":      e.TTSMs,
		})
	if err != nil {
		return fmt.Errorf("journal postgres: record: %w", err)
	}
	return nil
}

// Session returns the entries of one session in turn order.
func (s *Store) Session(ctx context.Context, sessionID string) ([]journal.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT recorded_at, session_id::text, turn, outcome, heard, language, route, response, error, listen_ms, stt_ms, tts_ms
		FROM journal_entries
		WHERE session_id = $1
		ORDER BY turn, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal postgres: query session: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Entry, error) {
		var e journal.Entry
		err := row.Scan(&e.Time, &e.SessionID, &e.Turn, &e.Outcome, &e.Heard, &e.Language,
			&e.Route, &e.Response, &e.Error, &e.ListenMs, &e.STTMs, &e.TTSMs)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("journal postgres: scan session: %w", err)
	}
	return entries, nil
}

// Ping implements [journal.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [journal.Store].
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
