package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
//
// Fallback backends usually have a different voice catalogue; each entry
// synthesises with the voice registered for it in AddFallback.
type TTSFallback struct {
	group *FallbackGroup[voiced]
}

// voiced pairs a provider with the voice it should use.
type voiced struct {
	provider tts.Provider
	voice    *tts.VoiceProfile
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
// The primary uses the voice passed to Synthesize.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	cfg.Terminal = func(err error) bool { return errors.Is(err, tts.ErrEmptyText) }
	return &TTSFallback{
		group: NewFallbackGroup(voiced{provider: primary}, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback. A non-nil
// voice replaces the caller's voice ID for this provider; the caller's speed
// factor is kept.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider, voice *tts.VoiceProfile) {
	f.group.AddFallback(name, voiced{provider: provider, voice: voice})
}

// States returns the breaker state of every backend.
func (f *TTSFallback) States() map[string]State { return f.group.States() }

// Synthesize renders text with the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (audio.AudioFrame, error) {
	return ExecuteWithResult(f.group, func(v voiced) (audio.AudioFrame, error) {
		use := voice
		if v.voice != nil {
			use = *v.voice
			if use.SpeedFactor == 0 {
				use.SpeedFactor = voice.SpeedFactor
			}
		}
		return v.provider.Synthesize(ctx, text, use)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(v voiced) ([]tts.VoiceProfile, error) {
		return v.provider.ListVoices(ctx)
	})
}
