// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (ElevenLabs, a Coqui TTS
// server, or the OpenAI speech API) and turns one response into a single
// PCM frame ready for playback. Responses are a sentence or two, so the whole
// utterance is synthesised before it is played.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/MrWong99/pinocchio/pkg/audio"
)

// ErrEmptyText is returned when there is nothing to synthesise.
var ErrEmptyText = errors.New("tts: text is empty")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with voice and returns little-endian int16 PCM
	// in the provider's native format. The caller converts it for playback.
	//
	// Returns an error wrapping [ErrEmptyText] for blank text.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (audio.AudioFrame, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
