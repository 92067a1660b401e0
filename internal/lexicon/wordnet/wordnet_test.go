package wordnet_test

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/pinocchio/internal/lexicon"
	"github.com/MrWong99/pinocchio/internal/lexicon/wordnet"
)

const sample = `{
  "@graph": [{
    "entry": [
      {"@id": "oewn-happy-a", "lemma": {"writtenForm": "happy"},
       "sense": [{"@id": "s1", "synset": "oewn-01148283-a"}, {"@id": "s2", "synset": "oewn-01048406-s"}]},
      {"@id": "oewn-felicitous-a", "lemma": {"writtenForm": "felicitous"},
       "sense": [{"@id": "s3", "synset": "oewn-01048406-s"}]},
      {"@id": "oewn-glad-a", "lemma": {"writtenForm": "glad"},
       "sense": [{"@id": "s4", "synset": "oewn-01148283-a"}, {"@id": "s5", "synset": "oewn-99999999-x"}]},
      {"@id": "oewn-empty", "lemma": {"writtenForm": ""}, "sense": [{"@id": "s6", "synset": "oewn-01148283-a"}]}
    ],
    "synset": [{"@id": "oewn-01148283-a"}, {"@id": "oewn-01048406-s"}]
  }]
}`

func TestRead(t *testing.T) {
	t.Parallel()

	idx, stats, err := wordnet.Read(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if stats.Entries != 4 || stats.Senses != 5 || stats.Synsets != 3 || stats.Orphans != 1 {
		t.Errorf("stats = %+v", stats)
	}
	got := lexicon.Synonyms(idx, "happy")
	if !slices.Equal(got, []string{"felicitous", "glad"}) {
		t.Errorf("Synonyms(happy) = %v, want [felicitous glad]", got)
	}
}

func TestLoad_Gzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "english-wordnet.json")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	idx, _, err := wordnet.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := wordnet.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, _, err := wordnet.Read(strings.NewReader("not json")); err == nil {
		t.Error("expected error for malformed input")
	}
}
