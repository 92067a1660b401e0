// Package coqui speaks through a self-hosted Coqui server.
//
// Two server flavours are supported. The stock TTS server
// (ghcr.io/coqui-ai/tts) synthesizes on GET /api/tts and describes its model on
// GET /details. The XTTS v2 API server synthesizes on POST /tts_to_audio/ and
// lists its studio speakers on GET /studio_speakers. Both reply with WAV.
//
//	p, err := coqui.New("http://localhost:8002", coqui.WithAPIMode(coqui.APIModeXTTS))
//	frame, err := p.Synthesize(ctx, "It is not untrue.", voice)
package coqui

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
)

// APIMode selects the server flavour.
type APIMode string

const (
	// APIModeStandard targets the stock Coqui TTS server. It is the default.
	APIModeStandard APIMode = "standard"

	// APIModeXTTS targets the XTTS v2 API server.
	APIModeXTTS APIMode = "xtts"
)

// Option configures a [Provider].
type Option func(*Provider)

// WithLanguage sets the language sent with every request. Default: "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout bounds each HTTP request. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithAPIMode selects the server flavour.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) { p.apiMode = mode }
}

// Provider implements tts.Provider on a Coqui server.
type Provider struct {
	serverURL  string
	language   string
	apiMode    APIMode
	httpClient *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.apiMode != APIModeStandard && p.apiMode != APIModeXTTS {
		return nil, fmt.Errorf("coqui: unknown API mode %q", p.apiMode)
	}
	return p, nil
}

// ttsRequest is the XTTS synthesis body.
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// detailsResponse is the stock server's model description. Speakers is empty
// for single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Synthesize renders text and returns the decoded WAV at the model's rate.
// Coqui has no speaking-rate control, so voice.SpeedFactor is ignored.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.AudioFrame, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.AudioFrame{}, fmt.Errorf("coqui: %w", tts.ErrEmptyText)
	}

	var req *http.Request
	var err error
	switch p.apiMode {
	case APIModeXTTS:
		if voice.ID == "" {
			return audio.AudioFrame{}, errors.New("coqui: XTTS needs a speaker; voice.ID is empty")
		}
		body, _ := json.Marshal(ttsRequest{Text: text, SpeakerWav: voice.ID, Language: p.language})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		q := url.Values{"text": {text}}
		if voice.ID != "" {
			q.Set("speaker_id", voice.ID)
		}
		if p.language != "" {
			q.Set("language_id", p.language)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	}
	if err != nil {
		return audio.AudioFrame{}, fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	wav, err := p.do(req)
	if err != nil {
		return audio.AudioFrame{}, err
	}
	frame, err := audio.ParseWAV(wav)
	if err != nil {
		return audio.AudioFrame{}, fmt.Errorf("coqui: decode response: %w", err)
	}
	return frame, nil
}

// ListVoices returns the server's speakers sorted by ID. A single-speaker
// stock model is listed under its model name.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	if p.apiMode == APIModeXTTS {
		var speakers map[string]json.RawMessage
		if err := p.getJSON(ctx, studioSpeakersEndpoint, &speakers); err != nil {
			return nil, err
		}
		return profiles(slices.Sorted(maps.Keys(speakers)), map[string]string{"type": "studio"}), nil
	}

	var d detailsResponse
	if err := p.getJSON(ctx, detailsEndpoint, &d); err != nil {
		return nil, err
	}
	if len(d.Speakers) > 0 {
		return profiles(slices.Sorted(slices.Values(d.Speakers)),
			map[string]string{"type": "speaker", "model_name": d.ModelName}), nil
	}
	name := cmp.Or(d.ModelName, "default")
	return profiles([]string{name}, map[string]string{"type": "single-speaker", "model_name": name}), nil
}

func profiles(ids []string, meta map[string]string) []tts.VoiceProfile {
	out := make([]tts.VoiceProfile, len(ids))
	for i, id := range ids {
		out[i] = tts.VoiceProfile{ID: id, Name: id, Provider: "coqui", Metadata: maps.Clone(meta)}
	}
	return out
}

func (p *Provider) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("coqui: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	body, err := p.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("coqui: decode %s: %w", path, err)
	}
	return nil
}

// do sends req and returns the body of a 200 response.
func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: %s %s: read body: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: %s %s returned status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
