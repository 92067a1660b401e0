// Package audio defines the interfaces and types for local audio devices used
// by Pinocchio: a microphone that produces frames and a speaker that plays
// synthesized speech.
//
// The two primary abstractions are:
//
//   - [Platform] opens an audio device and returns a [Connection].
//   - [Connection] is the open device: a single capture stream plus blocking
//     playback.
//
// Implementations live in adapter packages (audio/portaudio, audio/mock).
// This package lives under pkg/ because third-party adapters are expected to
// implement [Platform] and [Connection].
package audio

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable is returned by [Platform.Connect] when no usable
// capture or playback device exists. It is fatal at startup.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// Connection represents an open capture and playback device.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// InputStream returns the channel of captured microphone frames. Frames
	// arrive continuously while the connection is open; the channel is closed
	// by Disconnect. Slow readers lose frames rather than block capture.
	InputStream() <-chan AudioFrame

	// InputFormat reports the format of frames delivered by InputStream.
	InputFormat() Format

	// Play writes frame to the output device and blocks until it has been
	// played or ctx is cancelled. Frames in other formats are converted.
	Play(ctx context.Context, frame AudioFrame) error

	// Disconnect stops capture and releases the device. It is safe to call
	// more than once; subsequent calls return nil.
	Disconnect() error
}

// Platform opens audio devices.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect opens the device identified by deviceID ("" or "default" for
	// the system default) and starts capture. Returns an error wrapping
	// [ErrDeviceUnavailable] when no device can be opened.
	Connect(ctx context.Context, deviceID string) (Connection, error)
}
