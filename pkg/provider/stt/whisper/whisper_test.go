package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
	"github.com/MrWong99/pinocchio/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// inferenceRequest captures what the mock server received.
type inferenceRequest struct {
	language string
	model    string
	wav      []byte
}

// mockServer responds to POST /inference with a fixed body and records each
// request.
type mockServer struct {
	mu       sync.Mutex
	status   int
	text     string
	requests []inferenceRequest
}

func (m *mockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/inference" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := inferenceRequest{language: r.FormValue("language"), model: r.FormValue("model")}
	if f, _, err := r.FormFile("file"); err == nil {
		req.wav, _ = io.ReadAll(f)
		f.Close()
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	status := m.status
	m.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "boom", status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"text": m.text})
}

func newServer(t *testing.T, m *mockServer) *whisper.Provider {
	t.Helper()
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	p, err := whisper.New(srv.URL, whisper.WithModel("base.en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// makeSpeechPCM generates a 440 Hz sine wave of the given number of 16-bit
// samples at 16 kHz.
func makeSpeechPCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// makeSilencePCM generates zero-valued 16-bit samples.
func makeSilencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

// ---- constructor ------------------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	p, err := whisper.New("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithLanguage("ml"),
		whisper.WithHTTPClient(http.DefaultClient),
	)
	if err != nil || p == nil {
		t.Fatalf("New = (%v, %v), want provider", p, err)
	}
}

// ---- Transcribe -------------------------------------------------------------

func TestTranscribe_ReturnsCleanedText(t *testing.T) {
	m := &mockServer{text: "  I am a real boy.\n"}
	p := newServer(t, m)

	frame := audio.AudioFrame{Data: makeSpeechPCM(8000), SampleRate: 16000, Channels: 1}
	got, err := p.Transcribe(context.Background(), frame, stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "I am a real boy." {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Language != "en" {
		t.Errorf("Language = %q, want default en", got.Language)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(m.requests))
	}
	req := m.requests[0]
	if req.model != "base.en" {
		t.Errorf("model field = %q", req.model)
	}
	parsed, err := audio.ParseWAV(req.wav)
	if err != nil {
		t.Fatalf("uploaded file is not WAV: %v", err)
	}
	if parsed.SampleRate != 16000 || parsed.Channels != 1 || len(parsed.Data) != len(frame.Data) {
		t.Errorf("uploaded WAV = %d Hz, %d ch, %d bytes", parsed.SampleRate, parsed.Channels, len(parsed.Data))
	}
}

func TestTranscribe_ResamplesToSixteenKHz(t *testing.T) {
	m := &mockServer{text: "hello"}
	p := newServer(t, m)

	frame := audio.AudioFrame{Data: make([]byte, 48000*2*2), SampleRate: 48000, Channels: 2}
	if _, err := p.Transcribe(context.Background(), frame, stt.Config{Language: "ml"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	parsed, err := audio.ParseWAV(m.requests[0].wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if parsed.SampleRate != 16000 || parsed.Channels != 1 {
		t.Errorf("uploaded format = %s, want 16000 Hz mono", parsed.Format())
	}
	if m.requests[0].language != "ml" {
		t.Errorf("language field = %q, want ml", m.requests[0].language)
	}
}

func TestTranscribe_BlankAudio_Unrecognized(t *testing.T) {
	p := newServer(t, &mockServer{text: " [BLANK_AUDIO] "})

	frame := audio.AudioFrame{Data: makeSilencePCM(1600), SampleRate: 16000, Channels: 1}
	_, err := p.Transcribe(context.Background(), frame, stt.Config{})
	if !errors.Is(err, stt.ErrUnrecognized) {
		t.Fatalf("err = %v, want ErrUnrecognized", err)
	}
}

func TestTranscribe_EmptyFrame_Unrecognized(t *testing.T) {
	m := &mockServer{text: "never"}
	p := newServer(t, m)

	_, err := p.Transcribe(context.Background(), audio.AudioFrame{SampleRate: 16000, Channels: 1}, stt.Config{})
	if !errors.Is(err, stt.ErrUnrecognized) {
		t.Fatalf("err = %v, want ErrUnrecognized", err)
	}
	if len(m.requests) != 0 {
		t.Errorf("server called %d times for empty audio", len(m.requests))
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	p := newServer(t, &mockServer{status: http.StatusInternalServerError})

	frame := audio.AudioFrame{Data: makeSpeechPCM(1600), SampleRate: 16000, Channels: 1}
	_, err := p.Transcribe(context.Background(), frame, stt.Config{})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if errors.Is(err, stt.ErrUnrecognized) {
		t.Error("server failure must not be reported as unrecognized speech")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	p := newServer(t, &mockServer{text: "hi"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frame := audio.AudioFrame{Data: makeSpeechPCM(1600), SampleRate: 16000, Channels: 1}
	if _, err := p.Transcribe(ctx, frame, stt.Config{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
