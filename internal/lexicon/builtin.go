package lexicon

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed builtin.json
var builtinJSON []byte

type builtinSynset struct {
	ID     string   `json:"id"`
	Lemmas []string `json:"lemmas"`
}

var (
	builtinOnce  sync.Once
	builtinIndex *Index
)

// Builtin returns the small snapshot of WordNet synsets compiled into the
// binary. It covers common conversational words only and is used when no
// lexicon source is configured. The returned Index is shared; do not add to it.
func Builtin() *Index {
	builtinOnce.Do(func() {
		idx, err := ParseSnapshot(builtinJSON)
		if err != nil {
			panic(fmt.Sprintf("lexicon: embedded snapshot: %v", err))
		}
		builtinIndex = idx
	})
	return builtinIndex
}

// ParseSnapshot decodes a JSON array of {"id", "lemmas"} objects into a new
// Index.
func ParseSnapshot(data []byte) (*Index, error) {
	var synsets []builtinSynset
	if err := json.Unmarshal(data, &synsets); err != nil {
		return nil, fmt.Errorf("lexicon: parse snapshot: %w", err)
	}
	idx := NewIndex()
	for _, s := range synsets {
		if s.ID == "" {
			return nil, fmt.Errorf("lexicon: parse snapshot: synset without id")
		}
		idx.AddSynset(s.ID, s.Lemmas...)
	}
	return idx, nil
}
