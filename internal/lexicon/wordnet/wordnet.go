// Package wordnet loads Open English WordNet GWN-LMF JSON releases into a
// [lexicon.Index].
package wordnet

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MrWong99/pinocchio/internal/lexicon"
)

// Stats summarizes a load.
type Stats struct {
	Entries int
	Senses  int
	Synsets int
	// Orphans counts senses whose synset is not declared in the lexicon.
	Orphans int
}

type gwnDocument struct {
	Graph []gwnLexicon `json:"@graph"`
}

type gwnLexicon struct {
	Entries []gwnEntry  `json:"entry"`
	Synsets []gwnSynset `json:"synset"`
}

type gwnEntry struct {
	ID    string     `json:"@id"`
	Lemma gwnLemma   `json:"lemma"`
	Sense []gwnSense `json:"sense"`
}

type gwnLemma struct {
	WrittenForm string `json:"writtenForm"`
}

type gwnSense struct {
	ID     string `json:"@id"`
	Synset string `json:"synset"`
}

type gwnSynset struct {
	ID string `json:"@id"`
}

// Load reads a GWN-LMF JSON file. Files may be gzip-compressed; compression is
// detected from the content, not the name.
func Load(path string) (*lexicon.Index, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("wordnet: open: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read is like [Load] but reads from r.
func Read(r io.Reader) (*lexicon.Index, Stats, error) {
	br := bufio.NewReader(r)
	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("wordnet: gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	} else {
		r = br
	}

	var doc gwnDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, Stats{}, fmt.Errorf("wordnet: decode: %w", err)
	}

	idx := lexicon.NewIndex()
	var stats Stats
	for _, lex := range doc.Graph {
		declared := make(map[string]bool, len(lex.Synsets))
		for _, s := range lex.Synsets {
			declared[s.ID] = true
		}
		stats.Entries += len(lex.Entries)

		for _, entry := range lex.Entries {
			lemma := entry.Lemma.WrittenForm
			if lemma == "" {
				continue
			}
			for _, sense := range entry.Sense {
				if sense.Synset == "" {
					continue
				}
				stats.Senses++
				if len(declared) > 0 && !declared[sense.Synset] {
					stats.Orphans++
				}
				idx.AddSynset(sense.Synset, lemma)
			}
		}
	}
	stats.Synsets = idx.Len()
	return idx, stats, nil
}
