package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/pinocchio/pkg/provider/tts"
)

type speechServer struct {
	mu   sync.Mutex
	body map[string]any
	pcm  []byte
}

func (s *speechServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
		http.NotFound(w, r)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
	w.Header().Set("Content-Type", "audio/pcm")
	_, _ = w.Write(s.pcm)
}

func TestSynthesize(t *testing.T) {
	s := &speechServer{pcm: []byte{1, 0, 2, 0, 3, 0, 4, 0}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL+"/v1/"), WithModel("tts-1"), WithInstructions("slowly"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frame, err := p.Synthesize(context.Background(), " Not untrue. ", tts.VoiceProfile{SpeedFactor: 0.85})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(frame.Data) != 8 || frame.SampleRate != pcmSampleRate || frame.Channels != 1 {
		t.Errorf("frame = %d bytes at %s", len(frame.Data), frame.Format())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	checks := map[string]any{
		"input":           "Not untrue.",
		"model":           "tts-1",
		"voice":           defaultVoice,
		"response_format": "pcm",
		"speed":           0.85,
		"instructions":    "slowly",
	}
	for k, want := range checks {
		if s.body[k] != want {
			t.Errorf("request %s = %v, want %v", k, s.body[k], want)
		}
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("sk-test")
	if _, err := p.Synthesize(context.Background(), "\n", tts.VoiceProfile{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestListVoices(t *testing.T) {
	p, _ := New("sk-test")
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != len(builtinVoices) {
		t.Fatalf("got %d voices, want %d", len(voices), len(builtinVoices))
	}
	found := false
	for _, v := range voices {
		if v.ID == defaultVoice && v.Provider == "openai" {
			found = true
		}
	}
	if !found {
		t.Errorf("default voice %q missing from catalogue", defaultVoice)
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
