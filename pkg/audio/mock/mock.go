// Package mock provides in-memory mock implementations of the [audio.Platform]
// and [audio.Connection] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	in := make(chan audio.AudioFrame, 16)
//	conn := &mock.Connection{Input: in, Format: audio.Format{SampleRate: 16000, Channels: 1}}
//	platform := &mock.Platform{ConnectResult: conn}
//	got, err := platform.Connect(ctx, "default")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/pinocchio/pkg/audio"
)

var (
	_ audio.Platform   = (*Platform)(nil)
	_ audio.Connection = (*Connection)(nil)
)

// Connection is a mock implementation of [audio.Connection].
// Set the exported fields before use; inspect the Call* fields after.
type Connection struct {
	mu sync.Mutex

	// Input is returned by [Connection.InputStream]. A nil Input is replaced
	// by an unbuffered channel that never delivers.
	Input chan audio.AudioFrame

	// Format is returned by [Connection.InputFormat].
	Format audio.Format

	// PlayError is returned by [Connection.Play].
	PlayError error

	// OnPlay, if set, is called with every played frame after it is recorded.
	OnPlay func(audio.AudioFrame)

	// DisconnectError is returned by [Connection.Disconnect].
	DisconnectError error

	// PlayCalls records every frame passed to Play.
	PlayCalls []audio.AudioFrame

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int
}

// InputStream implements [audio.Connection].
func (c *Connection) InputStream() <-chan audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Input == nil {
		c.Input = make(chan audio.AudioFrame)
	}
	return c.Input
}

// InputFormat implements [audio.Connection].
func (c *Connection) InputFormat() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Format
}

// Play implements [audio.Connection]. It records frame and returns PlayError,
// or ctx.Err() when ctx is already done.
func (c *Connection) Play(ctx context.Context, frame audio.AudioFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.PlayCalls = append(c.PlayCalls, frame)
	hook, err := c.OnPlay, c.PlayError
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
	}
	return err
}

// Played returns a copy of PlayCalls.
func (c *Connection) Played() []audio.AudioFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.AudioFrame(nil), c.PlayCalls...)
}

// Disconnect implements [audio.Connection]. Returns DisconnectError.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	return c.DisconnectError
}

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	// DeviceID is the deviceID argument passed to Connect.
	DeviceID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is the [audio.Connection] returned by Connect.
	ConnectResult audio.Connection

	// ConnectError is the error returned by Connect.
	ConnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall
}

// Connect implements [audio.Platform]. Records the call and returns ConnectResult / ConnectError.
func (p *Platform) Connect(_ context.Context, deviceID string) (audio.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{DeviceID: deviceID})
	if p.ConnectError != nil {
		return nil, p.ConnectError
	}
	return p.ConnectResult, nil
}
