package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
//
// [stt.ErrUnrecognized] is an answer, not an outage: it is returned from the
// first provider that reports it and never trips a breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	cfg.Terminal = func(err error) bool { return errors.Is(err, stt.ErrUnrecognized) }
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// States returns the breaker state of every backend.
func (f *STTFallback) States() map[string]State { return f.group.States() }

// Transcribe runs against the first healthy provider, failing over on
// service errors.
func (f *STTFallback) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Transcript, error) {
		return p.Transcribe(ctx, frame, cfg)
	})
}
