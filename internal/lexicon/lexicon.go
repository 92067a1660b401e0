// Package lexicon provides the synonym lookup used by the English confusion
// transform.
//
// A [Lexicon] maps a word to its senses; each sense is the list of lemmas that
// share it. [Synonyms] flattens those senses into a clean synonym set. The
// in-memory [Index] is the only implementation the hot path touches: the
// WordNet loader and the PostgreSQL store both produce an Index at startup.
package lexicon

import (
	"slices"
	"strings"
)

// Lexicon returns every sense of a word as the lemmas belonging to it.
// Implementations must be safe for concurrent use.
type Lexicon interface {
	Senses(word string) [][]string
}

// Synonyms returns the deduplicated, sorted synonyms of word. Underscores in
// lemma names become spaces and the word itself is excluded regardless of
// case. An unknown word yields nil.
func Synonyms(lex Lexicon, word string) []string {
	senses := lex.Senses(word)
	if len(senses) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, lemmas := range senses {
		for _, l := range lemmas {
			syn := strings.ReplaceAll(l, "_", " ")
			if strings.EqualFold(syn, word) {
				continue
			}
			if _, dup := seen[syn]; dup {
				continue
			}
			seen[syn] = struct{}{}
			out = append(out, syn)
		}
	}
	slices.Sort(out)
	return out
}

// Thesaurus adapts a [Lexicon] to the single-method synonym source consumed
// by the confusion transforms.
type Thesaurus struct {
	lex Lexicon
}

// NewThesaurus wraps lex.
func NewThesaurus(lex Lexicon) *Thesaurus {
	return &Thesaurus{lex: lex}
}

// Synonyms returns [Synonyms] of word.
func (t *Thesaurus) Synonyms(word string) []string {
	return Synonyms(t.lex, word)
}
