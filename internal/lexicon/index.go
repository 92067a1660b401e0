package lexicon

import (
	"slices"
	"strings"
	"sync"
)

var _ Lexicon = (*Index)(nil)

// Index is an in-memory synset index. The zero value is not usable; call
// [NewIndex].
type Index struct {
	mu      sync.RWMutex
	synsets map[string][]string
	byKey   map[string][]string
	order   []string
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		synsets: make(map[string][]string),
		byKey:   make(map[string][]string),
	}
}

// lemmaKey normalizes a lemma or query word for lookup: lower case, with
// spaces and underscores treated alike.
func lemmaKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// AddSynset adds lemmas to the synset id, creating it if needed. Empty and
// repeated lemmas are ignored.
func (x *Index) AddSynset(id string, lemmas ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	existing, ok := x.synsets[id]
	if !ok {
		x.order = append(x.order, id)
	}
	for _, l := range lemmas {
		l = strings.TrimSpace(l)
		if l == "" || slices.Contains(existing, l) {
			continue
		}
		existing = append(existing, l)
		key := lemmaKey(l)
		if !slices.Contains(x.byKey[key], id) {
			x.byKey[key] = append(x.byKey[key], id)
		}
	}
	x.synsets[id] = existing
}

// Senses implements [Lexicon]. The returned slices are copies.
func (x *Index) Senses(word string) [][]string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := x.byKey[lemmaKey(word)]
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, slices.Clone(x.synsets[id]))
	}
	return out
}

// Len returns the number of synsets.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.synsets)
}

// Lemmas returns the number of distinct lemma keys.
func (x *Index) Lemmas() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byKey)
}

// Each calls fn for every synset in insertion order and stops at the first
// error.
func (x *Index) Each(fn func(id string, lemmas []string) error) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for _, id := range x.order {
		if err := fn(id, x.synsets[id]); err != nil {
			return err
		}
	}
	return nil
}
