// Package whisper transcribes with whisper.cpp.
//
// [Provider] posts each utterance as a WAV file to a whisper-server's
// POST /inference. [NativeProvider] runs the model in-process through the
// whisper.cpp Go bindings.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	t, err := p.Transcribe(ctx, utterance, stt.Config{})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

const (
	defaultLanguage = "en"

	// whisper.cpp only accepts 16 kHz mono.
	modelRate = 16000
)

var modelFormat = audio.Format{SampleRate: modelRate, Channels: 1}

var _ stt.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel names the model for servers that host several. Empty uses the
// server's default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language used when stt.Config has none. "auto" lets
// whisper detect it. Default: "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider transcribes through a whisper-server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New returns a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe sends frame as one request. Keyword boosting is not supported
// by whisper.cpp, so cfg.Keywords is ignored.
func (p *Provider) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	if len(frame.Data) == 0 {
		return stt.Transcript{}, fmt.Errorf("whisper: empty audio: %w", stt.ErrUnrecognized)
	}
	lang := pick(cfg.Language, p.language)
	frame = audio.Convert(frame, modelFormat)

	body, contentType, err := p.form(audio.EncodeWAV(frame), lang)
	if err != nil {
		return stt.Transcript{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: inference: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: decode response: %w", err)
	}
	return result(out.Text, lang, frame)
}

// form encodes the multipart body of an inference request.
func (p *Provider) form(wav []byte, lang string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err == nil {
		_, err = fw.Write(wav)
	}
	fields := [][2]string{{"response_format", "json"}, {"language", lang}, {"model", p.model}}
	for _, f := range fields {
		if err == nil && f[1] != "" {
			err = mw.WriteField(f[0], f[1])
		}
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return nil, "", fmt.Errorf("whisper: encode form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// result turns raw model output into a transcript. Output that is empty
// after removing whisper's blank markers is unrecognized speech.
func result(raw, lang string, frame audio.AudioFrame) (stt.Transcript, error) {
	text := stt.CleanText(raw)
	if text == "" {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", stt.ErrUnrecognized)
	}
	return stt.Transcript{Text: text, Language: lang, Duration: frame.Duration()}, nil
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
