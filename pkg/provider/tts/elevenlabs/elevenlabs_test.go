package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/pinocchio/pkg/provider/tts"
)

// fakeElevenLabs serves both the stream-input WebSocket and GET /v1/voices.
type fakeElevenLabs struct {
	mu       sync.Mutex
	path     string
	query    string
	messages []textMessage
	chunks   [][]byte
	errMsg   string
}

func (f *fakeElevenLabs) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/voices" {
		if r.Header.Get("xi-api-key") != "key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"voices":[
			{"voice_id":"abc123","name":"Rachel","category":"premade","labels":{"gender":"female"}},
			{"voice_id":"x1","name":"Ghost","category":"","labels":null}
		]}`))
		return
	}

	f.mu.Lock()
	f.path = r.URL.Path
	f.query = r.URL.RawQuery
	f.mu.Unlock()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var m textMessage
		_ = json.Unmarshal(data, &m)
		f.mu.Lock()
		f.messages = append(f.messages, m)
		f.mu.Unlock()
		if m.Text == "" {
			break
		}
	}

	if f.errMsg != "" {
		b, _ := json.Marshal(audioResponse{Error: "quota_exceeded", Message: f.errMsg})
		_ = conn.Write(ctx, websocket.MessageText, b)
		return
	}
	for _, c := range f.chunks {
		b, _ := json.Marshal(audioResponse{Audio: base64.StdEncoding.EncodeToString(c)})
		if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
			return
		}
	}
	b, _ := json.Marshal(audioResponse{IsFinal: true})
	_ = conn.Write(ctx, websocket.MessageText, b)
	conn.Close(websocket.StatusNormalClosure, "")
}

func newTestProvider(t *testing.T, f *fakeElevenLabs, opts ...Option) *Provider {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")
	p, err := New("key", append([]Option{WithBaseURLs("ws://"+host, srv.URL)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestSynthesize(t *testing.T) {
	f := &fakeElevenLabs{chunks: [][]byte{{1, 0, 2, 0}, {3, 0}}}
	p := newTestProvider(t, f, WithOutputFormat("pcm_24000"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frame, err := p.Synthesize(ctx, "I am a real boy.", tts.VoiceProfile{ID: "voice-1", SpeedFactor: 0.5})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(frame.Data) != string([]byte{1, 0, 2, 0, 3, 0}) {
		t.Errorf("Data = %v", frame.Data)
	}
	if frame.SampleRate != 24000 || frame.Channels != 1 {
		t.Errorf("format = %s, want 24000 Hz mono", frame.Format())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path != "/v1/text-to-speech/voice-1/stream-input" {
		t.Errorf("path = %q", f.path)
	}
	if !strings.Contains(f.query, "output_format=pcm_24000") || !strings.Contains(f.query, "model_id="+defaultModel) {
		t.Errorf("query = %q", f.query)
	}
	if len(f.messages) != 3 {
		t.Fatalf("server got %d messages, want 3", len(f.messages))
	}
	first := f.messages[0]
	if first.Text != " " || first.XiAPIKey != "key" || first.VoiceSettings == nil {
		t.Fatalf("first message = %+v", first)
	}
	if first.VoiceSettings.Speed != minSpeed {
		t.Errorf("speed = %v, want clamped to %v", first.VoiceSettings.Speed, minSpeed)
	}
	if f.messages[1].Text != "I am a real boy. " || !f.messages[1].Flush {
		t.Errorf("text message = %+v", f.messages[1])
	}
}

func TestSynthesize_ServerError(t *testing.T) {
	p := newTestProvider(t, &fakeElevenLabs{errMsg: "out of characters"})
	_, err := p.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "v"})
	if err == nil || !strings.Contains(err.Error(), "out of characters") {
		t.Fatalf("err = %v, want server error", err)
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("expected error for empty voice ID")
	}
	if _, err := p.Synthesize(context.Background(), "  ", tts.VoiceProfile{ID: "v"}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestListVoices(t *testing.T) {
	p := newTestProvider(t, &fakeElevenLabs{})
	profiles, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	rachel := profiles[0]
	if rachel.ID != "abc123" || rachel.Name != "Rachel" || rachel.Provider != "elevenlabs" {
		t.Errorf("rachel = %+v", rachel)
	}
	if rachel.Metadata["gender"] != "female" || rachel.Metadata["category"] != "premade" {
		t.Errorf("rachel metadata = %v", rachel.Metadata)
	}
	if _, ok := profiles[1].Metadata["category"]; ok {
		t.Error("expected no 'category' key in metadata when category is empty")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != defaultModel {
		t.Errorf("expected model %q, got %q", defaultModel, p.model)
	}
	if p.outputFormat != defaultOutputFmt {
		t.Errorf("expected outputFormat %q, got %q", defaultOutputFmt, p.outputFormat)
	}
}

func TestNew_RejectsEncodedFormat(t *testing.T) {
	if _, err := New("key", WithOutputFormat("mp3_44100_128")); err == nil {
		t.Error("expected error for non-PCM output format")
	}
}

func TestBuildURL(t *testing.T) {
	p, _ := New("key", WithModel("eleven_multilingual_v2"))
	u := p.buildURL("voice abc")
	if !strings.HasPrefix(u, "wss://api.elevenlabs.io/v1/text-to-speech/voice%20abc/stream-input?") {
		t.Errorf("URL = %s", u)
	}
	if !strings.Contains(u, "model_id=eleven_multilingual_v2") {
		t.Errorf("URL should contain model ID, got: %s", u)
	}
}
