package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/pinocchio/internal/lexicon"
	lexiconpg "github.com/MrWong99/pinocchio/internal/lexicon/postgres"
	"github.com/MrWong99/pinocchio/internal/lexicon/wordnet"
)

// dsnEnv is consulted when --dsn is not given.
const dsnEnv = "PINOCCHIO_LEXICON_DSN"

type rootOptions struct {
	dsn     string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pinocchio-lexicon",
		Short: "Manage the pinocchio synonym lexicon",
		Long: `pinocchio-lexicon imports WordNet snapshots into PostgreSQL and inspects
the lexicon sources pinocchio can load at startup (builtin, wordnet, postgres).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL connection string (or set "+dsnEnv+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall deadline for the command")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newImportCmd(opts), newLookupCmd(opts), newStatsCmd(opts))
	return root
}

func (o *rootOptions) resolveDSN() (string, error) {
	if o.dsn != "" {
		return o.dsn, nil
	}
	if v := os.Getenv(dsnEnv); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no database given: pass --dsn or set %s", dsnEnv)
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func (o *rootOptions) openStore(ctx context.Context) (*lexiconpg.Store, error) {
	dsn, err := o.resolveDSN()
	if err != nil {
		return nil, err
	}
	return lexiconpg.NewStore(ctx, dsn)
}

// ── import ───────────────────────────────────────────────────────────────────

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <wordnet.json>",
		Short: "Import a WordNet JSON snapshot into PostgreSQL",
		Long: `Import replaces the stored lexicon with the synsets of a WordNet snapshot in
JSON format. The import runs in one transaction; a failed import leaves the
previous lexicon untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, stats, err := wordnet.Load(args[0])
			if err != nil {
				return err
			}
			slog.Debug("parsed snapshot", "path", args[0], "stats", stats)

			ctx, cancel := opts.context(cmd)
			defer cancel()
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			start := time.Now()
			if err := store.Import(ctx, idx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d synsets (%d lemmas) in %s\n",
				idx.Len(), idx.Lemmas(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// ── lookup ───────────────────────────────────────────────────────────────────

func newLookupCmd(opts *rootOptions) *cobra.Command {
	var source, path string
	cmd := &cobra.Command{
		Use:   "lookup <word>...",
		Short: "Print the synonyms of one or more words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			lex, closeFn, err := openLexicon(ctx, opts, source, path)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			for _, w := range args {
				syns := lexicon.Synonyms(lex, w)
				if len(syns) == 0 {
					fmt.Fprintf(out, "%s: (no synonyms)\n", w)
					continue
				}
				fmt.Fprintf(out, "%s: %s\n", w, strings.Join(syns, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "builtin", "lexicon source: builtin, wordnet or postgres")
	cmd.Flags().StringVar(&path, "path", "", "WordNet JSON snapshot (for --source wordnet)")
	return cmd
}

// pgLexicon answers lookups straight from the database.
type pgLexicon struct {
	ctx   context.Context
	store *lexiconpg.Store
}

func (p pgLexicon) Senses(word string) [][]string {
	senses, err := p.store.Lookup(p.ctx, word)
	if err != nil {
		slog.Warn("lookup failed", "word", word, "err", err)
		return nil
	}
	return senses
}

func openLexicon(ctx context.Context, opts *rootOptions, source, path string) (lexicon.Lexicon, func(), error) {
	switch source {
	case "builtin":
		return lexicon.Builtin(), func() {}, nil
	case "wordnet":
		if path == "" {
			return nil, nil, errors.New("--path is required with --source wordnet")
		}
		idx, _, err := wordnet.Load(path)
		if err != nil {
			return nil, nil, err
		}
		return idx, func() {}, nil
	case "postgres":
		store, err := opts.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return pgLexicon{ctx: ctx, store: store}, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want builtin, wordnet or postgres)", source)
	}
}

// ── stats ────────────────────────────────────────────────────────────────────

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the size of the stored lexicon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			store, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "synsets: %d\n", st.Synsets)
			fmt.Fprintf(out, "lemmas:  %d\n", st.Lemmas)
			return nil
		},
	}
}
