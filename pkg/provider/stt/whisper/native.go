package whisper

// NativeProvider needs libwhisper.a and whisper.h at build time, found via
// LIBRARY_PATH and C_INCLUDE_PATH.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider runs a whisper.cpp model in-process. The model is shared;
// each call creates its own context, so calls may run concurrently.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// NativeOption configures a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language used when stt.Config has none.
// Default: "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeThreads sets the CPU threads per call. Zero keeps whisper's
// default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative loads the model at modelPath. Call Close to free it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	m, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: m, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close frees the model.
func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe runs the model on frame. ctx is checked before inference only;
// a running inference cannot be interrupted.
func (p *NativeProvider) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}
	if len(frame.Data) == 0 {
		return stt.Transcript{}, fmt.Errorf("whisper: empty audio: %w", stt.ErrUnrecognized)
	}
	lang := pick(cfg.Language, p.language)

	wctx, err := p.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: new context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language rejected, keeping model default", "language", lang, "err", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if err := wctx.Process(frameToFloat32(frame), nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process: %w", err)
	}

	var sb strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		sb.WriteString(seg.Text)
		sb.WriteByte(' ')
	}
	return result(sb.String(), lang, frame)
}
