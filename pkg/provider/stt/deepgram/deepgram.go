// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// streaming WebSocket API. Each utterance is sent over its own connection and
// the final results are joined into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkDuration is the amount of audio per binary message.
	chunkDuration = 100 * time.Millisecond
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default BCP-47 language code for recognition. "multi"
// enables Deepgram's multilingual mode.
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithEndpoint overrides the WebSocket endpoint (used by tests and proxies).
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	if len(frame.Data) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: empty audio: %w", stt.ErrUnrecognized)
	}
	frame = audio.Convert(frame, audio.Format{SampleRate: frame.SampleRate, Channels: 1})

	wsURL, err := p.buildURL(frame.SampleRate, cfg)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- p.sendAudio(ctx, conn, frame)
	}()

	var finals []stt.Transcript
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", ctx.Err())
			}
			if werr := <-writeErr; werr != nil {
				return stt.Transcript{}, werr
			}
			// Deepgram closes the socket once CloseStream has been flushed.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || len(finals) > 0 {
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}
		if r, ok := parseDeepgramResponse(msg); ok && r.final {
			finals = append(finals, r.Transcript)
		}
	}

	return joinFinals(finals, frame.Duration())
}

// sendAudio streams frame in chunks and asks Deepgram to flush.
func (p *Provider) sendAudio(ctx context.Context, conn *websocket.Conn, frame audio.AudioFrame) error {
	chunk := frame.SampleRate * 2 * int(chunkDuration/time.Millisecond) / 1000
	for off := 0; off < len(frame.Data); off += chunk {
		end := min(off+chunk, len(frame.Data))
		if err := conn.Write(ctx, websocket.MessageBinary, frame.Data[off:end]); err != nil {
			return fmt.Errorf("deepgram: write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

// buildURL constructs the Deepgram streaming endpoint URL.
func (p *Provider) buildURL(sampleRate int, cfg stt.Config) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", "1")

	for _, kw := range cfg.Keywords {
		// Deepgram keyword format: word:boost (e.g., "Geppetto:5")
		q.Add("keywords", fmt.Sprintf("%s:%g", kw.Keyword, kw.Boost))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		DetectedLanguage string `json:"detected_language"`
		Alternatives     []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	stt.Transcript
	final bool
}

// parseDeepgramResponse parses a raw Deepgram WebSocket message.
// Returns (result, true) on success, or (zero, false) if the message should be ignored.
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}

	return result{
		Transcript: stt.Transcript{
			Text:       alt.Transcript,
			Language:   resp.Channel.DetectedLanguage,
			Confidence: alt.Confidence,
			Words:      words,
		},
		final: resp.IsFinal,
	}, true
}

// joinFinals merges final segments into one transcript. Confidence is the
// mean over non-empty segments.
func joinFinals(finals []stt.Transcript, d time.Duration) (stt.Transcript, error) {
	var (
		parts []string
		out   stt.Transcript
		conf  float64
	)
	for _, f := range finals {
		text := stt.CleanText(f.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		out.Words = append(out.Words, f.Words...)
		conf += f.Confidence
		if out.Language == "" {
			out.Language = f.Language
		}
	}
	if len(parts) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: %w", stt.ErrUnrecognized)
	}
	out.Text = strings.Join(parts, " ")
	out.Confidence = conf / float64(len(parts))
	out.Duration = d
	return out, nil
}
