package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

type transcriptionServer struct {
	mu     sync.Mutex
	status int
	text   string
	fields map[string]string
	wav    []byte
}

func (s *transcriptionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.fields = map[string]string{}
	for k, v := range r.MultipartForm.Value {
		s.fields[k] = v[0]
	}
	if f, _, err := r.FormFile("file"); err == nil {
		s.wav, _ = io.ReadAll(f)
		f.Close()
	}
	status, text := s.status, s.text
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
}

func newTestProvider(t *testing.T, s *transcriptionServer, opts ...Option) *Provider {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	p, err := New("sk-test", append([]Option{WithBaseURL(srv.URL + "/v1/")}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestTranscribe(t *testing.T) {
	s := &transcriptionServer{text: " Where is Geppetto? "}
	p := newTestProvider(t, s, WithModel("gpt-4o-transcribe"))

	frame := audio.AudioFrame{Data: make([]byte, 48000*2), SampleRate: 48000, Channels: 1}
	got, err := p.Transcribe(context.Background(), frame, stt.Config{
		Language: "en-US",
		Keywords: []stt.KeywordBoost{{Keyword: "Geppetto", Boost: 3}, {Keyword: "Pinocchio"}},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "Where is Geppetto?" {
		t.Errorf("Text = %q", got.Text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fields["model"] != "gpt-4o-transcribe" {
		t.Errorf("model = %q", s.fields["model"])
	}
	if s.fields["language"] != "en" {
		t.Errorf("language = %q, want en", s.fields["language"])
	}
	if s.fields["prompt"] != "Geppetto, Pinocchio" {
		t.Errorf("prompt = %q", s.fields["prompt"])
	}
	wav, err := audio.ParseWAV(s.wav)
	if err != nil {
		t.Fatalf("uploaded file is not WAV: %v", err)
	}
	if wav.SampleRate != 16000 || wav.Channels != 1 {
		t.Errorf("uploaded format = %s, want 16 kHz mono", wav.Format())
	}
}

func TestTranscribe_EmptyText_Unrecognized(t *testing.T) {
	p := newTestProvider(t, &transcriptionServer{text: ""})
	frame := audio.AudioFrame{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	if _, err := p.Transcribe(context.Background(), frame, stt.Config{}); !errors.Is(err, stt.ErrUnrecognized) {
		t.Fatalf("err = %v, want ErrUnrecognized", err)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	p := newTestProvider(t, &transcriptionServer{status: http.StatusBadRequest})
	frame := audio.AudioFrame{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	_, err := p.Transcribe(context.Background(), frame, stt.Config{})
	if err == nil || errors.Is(err, stt.ErrUnrecognized) {
		t.Fatalf("err = %v, want API failure", err)
	}
}

func TestIsoLanguage(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"auto":  "",
		"multi": "",
		"en":    "en",
		"en-US": "en",
		"ML-IN": "ml",
	}
	for in, want := range tests {
		if got := isoLanguage(in); got != want {
			t.Errorf("isoLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeywordPrompt(t *testing.T) {
	if got := keywordPrompt(nil); got != "" {
		t.Errorf("keywordPrompt(nil) = %q", got)
	}
	kws := make([]stt.KeywordBoost, maxPromptKeywords+10)
	for i := range kws {
		kws[i].Keyword = "w"
	}
	if n := strings.Count(keywordPrompt(kws), "w"); n != maxPromptKeywords {
		t.Errorf("prompt has %d keywords, want %d", n, maxPromptKeywords)
	}
}
