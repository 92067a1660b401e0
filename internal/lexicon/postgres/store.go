// Package postgres stores a lexicon snapshot in PostgreSQL so that several
// hosts can share one imported WordNet release.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Import(ctx, idx)       // replace the stored snapshot
//	idx, _ := store.LoadIndex(ctx)   // read it back into memory
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/pinocchio/internal/lexicon"
)

const ddlLexicon = `
CREATE TABLE IF NOT EXISTS lexicon_synsets (
    id          TEXT         PRIMARY KEY,
    imported_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lexicon_lemmas (
    synset_id  TEXT  NOT NULL REFERENCES lexicon_synsets (id) ON DELETE CASCADE,
    position   INT   NOT NULL,
    lemma      TEXT  NOT NULL,
    lemma_key  TEXT  NOT NULL,
    PRIMARY KEY (synset_id, lemma)
);

CREATE INDEX IF NOT EXISTS idx_lexicon_lemmas_key
    ON lexicon_lemmas (lemma_key);
`

// Migrate creates the lexicon tables. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlLexicon); err != nil {
		return fmt.Errorf("lexicon postgres: migrate: %w", err)
	}
	return nil
}

// Store is a PostgreSQL-backed lexicon snapshot. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("lexicon postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("lexicon postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// lemmaKey mirrors the in-memory index normalization.
func lemmaKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// Import replaces the stored snapshot with idx in a single transaction.
func (s *Store) Import(ctx context.Context, idx *lexicon.Index) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("lexicon postgres: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `TRUNCATE lexicon_lemmas, lexicon_synsets`); err != nil {
		return fmt.Errorf("lexicon postgres: truncate: %w", err)
	}

	var synsetRows, lemmaRows [][]any
	_ = idx.Each(func(id string, lemmas []string) error {
		synsetRows = append(synsetRows, []any{id})
		for i, l := range lemmas {
			lemmaRows = append(lemmaRows, []any{id, i, l, lemmaKey(l)})
		}
		return nil
	})

	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"lexicon_synsets"}, []string{"id"},
		pgx.CopyFromRows(synsetRows)); err != nil {
		return fmt.Errorf("lexicon postgres: copy synsets: %w", err)
	}
	if _, err = tx.CopyFrom(ctx, pgx.Identifier{"lexicon_lemmas"},
		[]string{"synset_id", "position", "lemma", "lemma_key"},
		pgx.CopyFromRows(lemmaRows)); err != nil {
		return fmt.Errorf("lexicon postgres: copy lemmas: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("lexicon postgres: commit: %w", err)
	}
	return nil
}

// LoadIndex reads the whole snapshot into a new in-memory index.
func (s *Store) LoadIndex(ctx context.Context) (*lexicon.Index, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT synset_id, lemma FROM lexicon_lemmas ORDER BY synset_id, position`)
	if err != nil {
		return nil, fmt.Errorf("lexicon postgres: load: %w", err)
	}
	type pair struct{ synset, lemma string }
	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pair, error) {
		var p pair
		err := row.Scan(&p.synset, &p.lemma)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("lexicon postgres: load: %w", err)
	}

	idx := lexicon.NewIndex()
	for _, p := range pairs {
		idx.AddSynset(p.synset, p.lemma)
	}
	return idx, nil
}

// Lookup returns the senses of word straight from the database.
func (s *Store) Lookup(ctx context.Context, word string) ([][]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT l.synset_id, array_agg(l.lemma ORDER BY l.position)
FROM lexicon_lemmas l
WHERE l.synset_id IN (SELECT synset_id FROM lexicon_lemmas WHERE lemma_key = $1)
GROUP BY l.synset_id
ORDER BY l.synset_id`, lemmaKey(word))
	if err != nil {
		return nil, fmt.Errorf("lexicon postgres: lookup: %w", err)
	}
	senses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		var id string
		var lemmas []string
		err := row.Scan(&id, &lemmas)
		return lemmas, err
	})
	if err != nil {
		return nil, fmt.Errorf("lexicon postgres: lookup: %w", err)
	}
	return senses, nil
}

// Stats holds row counts of the stored snapshot.
type Stats struct {
	Synsets int64
	Lemmas  int64
}

// Stats counts synsets and distinct lemmas concurrently.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.pool.QueryRow(egCtx, `SELECT count(*) FROM lexicon_synsets`).Scan(&st.Synsets)
	})
	eg.Go(func() error {
		return s.pool.QueryRow(egCtx, `SELECT count(DISTINCT lemma_key) FROM lexicon_lemmas`).Scan(&st.Lemmas)
	})
	if err := eg.Wait(); err != nil {
		return Stats{}, fmt.Errorf("lexicon postgres: stats: %w", err)
	}
	return st, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
