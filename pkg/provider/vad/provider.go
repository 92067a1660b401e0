// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful, per-stream session. Each session keeps its own hysteresis state so
// that independent streams (or successive listens on one stream) do not
// influence each other.
//
// VAD is synchronous: ProcessFrame returns immediately with a detection result,
// which lets the listener gate what it buffers for STT.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session. Thresholds are expressed in
// the engine's native scale; see each Engine's documentation.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds.
	// ProcessFrame returns an error if the supplied frame does not match.
	FrameSizeMs int

	// SpeechThreshold is the level at or above which a frame counts as speech.
	SpeechThreshold float64

	// SilenceThreshold is the level below which a frame counts as silence
	// while speech is active. Must be ≤ SpeechThreshold.
	SilenceThreshold float64

	// MinSpeechMs is how long the level must stay above SpeechThreshold before
	// VADSpeechStart is emitted. Zero means one frame.
	MinSpeechMs int

	// MinSilenceMs is how long the level must stay below SilenceThreshold
	// before VADSpeechEnd is emitted. Zero means one frame.
	MinSilenceMs int
}

// SessionHandle represents an active VAD session for a single audio stream.
type SessionHandle interface {
	// ProcessFrame analyses a single frame of little-endian int16 PCM and
	// returns the detection result. It must not block.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears all accumulated detection state without closing the session.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
