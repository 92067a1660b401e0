// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (Deepgram, a whisper.cpp
// server, an in-process whisper.cpp model, or the OpenAI API) and turns one
// captured utterance into text. Utterances are short and bounded by the
// listener's phrase limit, so the contract is a single request per utterance
// rather than a stream.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/pinocchio/pkg/audio"
)

// ErrUnrecognized is returned when the audio contained no intelligible speech.
// It is a normal outcome, not a provider failure: callers should not retry it
// on another provider.
var ErrUnrecognized = errors.New("stt: speech not recognized")

// Config carries per-request recognition hints.
type Config struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US",
	// "ml"). An empty string lets the provider auto-detect the language, if
	// supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon words. Providers without keyword support
	// ignore it.
	Keywords []KeywordBoost
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognizes the speech in frame. frame is little-endian int16
	// PCM; providers convert it to the format their backend needs.
	//
	// Returns an error wrapping [ErrUnrecognized] when the backend produced
	// no text; any other error is a service failure.
	Transcribe(ctx context.Context, frame audio.AudioFrame, cfg Config) (Transcript, error)
}
