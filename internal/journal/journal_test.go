package journal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFileStore_RecordAndRead(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := fs.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	sid := NewSessionID()
	want := []Entry{
		{Time: time.Unix(100, 0).UTC(), SessionID: sid, Turn: 1, Outcome: "responded",
			Heard: "are you real", Language: "en", Route: "rewrite",
			Response: "It is not impossible that I am not unreal.", STTMs: 120},
		{Time: time.Unix(101, 0).UTC(), SessionID: sid, Turn: 2, Outcome: "unrecognized"},
	}
	for _, e := range want {
		if err := fs.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Time.Equal(want[i].Time) {
			t.Errorf("entry %d time = %v, want %v", i, got[i].Time, want[i].Time)
		}
		got[i].Time, want[i].Time = time.Time{}, time.Time{}
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStore_ConcurrentRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fs.Record(context.Background(), Entry{Turn: i, Outcome: "responded"}); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != n {
		t.Errorf("got %d entries, want %d", len(got), n)
	}
}

func TestFileStore_PingFailsOnDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	fs := &FileStore{path: dir}
	if err := fs.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail when the path is a directory")
	}
}

func TestReadFile_Corrupt(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := os.WriteFile(path, []byte("{\"turn\":1}\n\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Fatal("expected error for corrupt line")
	}
}

func TestNewSessionID(t *testing.T) {
	t.Parallel()
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Fatal("session IDs should be unique")
	}
	id, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("not a UUID: %v", err)
	}
	if id.Version() != 7 {
		t.Errorf("version = %d, want 7", id.Version())
	}
}

func TestNop(t *testing.T) {
	t.Parallel()
	var s Store = Nop{}
	ctx := context.Background()
	if err := s.Record(ctx, Entry{}); err != nil {
		t.Errorf("Record: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
