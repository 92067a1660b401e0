// Package sentence splits text into sentences with the Punkt English model.
package sentence

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits text into trimmed, non-empty sentences. It is safe for
// concurrent use.
type Segmenter struct {
	tok sentences.SentenceTokenizer
}

// New loads the English Punkt model.
func New() (*Segmenter, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("sentence: load english model: %w", err)
	}
	return &Segmenter{tok: tok}, nil
}

// Split returns the sentences of text. Blank input yields nil; text without a
// sentence boundary yields a single sentence.
func (s *Segmenter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, sent := range s.tok.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
