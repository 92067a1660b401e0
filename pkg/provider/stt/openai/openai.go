// Package openai provides an STT provider backed by the OpenAI audio
// transcription API (whisper-1, gpt-4o-transcribe and compatible servers).
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

const (
	defaultModel      = "whisper-1"
	uploadSampleRate  = 16000
	maxPromptKeywords = 50
)

var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider using the OpenAI API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, e.g. for a local
// OpenAI-compatible transcription server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the default recognition language.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe implements stt.Provider. Keywords are passed as a prompt, which
// is how the API biases vocabulary.
func (p *Provider) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	if len(frame.Data) == 0 {
		return stt.Transcript{}, fmt.Errorf("openai: empty audio: %w", stt.ErrUnrecognized)
	}
	frame = audio.Convert(frame, audio.Format{SampleRate: uploadSampleRate, Channels: 1})

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(audio.EncodeWAV(frame)), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	if iso := isoLanguage(lang); iso != "" {
		params.Language = oai.String(iso)
	}
	if prompt := keywordPrompt(cfg.Keywords); prompt != "" {
		params.Prompt = oai.String(prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("openai: transcribe: %w", err)
	}

	text := stt.CleanText(resp.Text)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("openai: %w", stt.ErrUnrecognized)
	}
	return stt.Transcript{Text: text, Language: lang, Duration: frame.Duration()}, nil
}

// isoLanguage reduces a BCP-47 tag to the ISO 639-1 code the API expects.
// "auto" and "multi" mean detection.
func isoLanguage(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	base = strings.ToLower(base)
	switch base {
	case "", "auto", "multi":
		return ""
	}
	return base
}

func keywordPrompt(kws []stt.KeywordBoost) string {
	if len(kws) == 0 {
		return ""
	}
	words := make([]string, 0, min(len(kws), maxPromptKeywords))
	for _, kw := range kws[:min(len(kws), maxPromptKeywords)] {
		words = append(words, kw.Keyword)
	}
	return strings.Join(words, ", ")
}
