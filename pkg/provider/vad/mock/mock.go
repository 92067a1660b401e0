// Package mock provides a scripted [vad.Engine] for tests.
//
// Every session replays the same script from its start, so a listener that
// opens one session per utterance sees the same speech pattern each time:
//
//	eng := &mock.Engine{Script: []vad.VADEventType{vad.VADSpeechStart, vad.VADSpeechEnd}}
package mock

import (
	"sync"

	"github.com/MrWong99/pinocchio/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	// Script lists the event returned for each frame of a session, in order.
	Script []vad.VADEventType

	// After is returned once Script is exhausted. The zero value is
	// VADSpeechStart, so most tests set it to VADSilence.
	After vad.VADEventType

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// FrameErr, if non-nil, is returned by every ProcessFrame call.
	FrameErr error

	mu      sync.Mutex
	configs []vad.Config
	frames  int
	closed  int
}

// NewSession records cfg and opens a session that replays Script.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	return &session{engine: e}, nil
}

// Sessions returns the config of every session opened so far.
func (e *Engine) Sessions() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vad.Config(nil), e.configs...)
}

// Frames returns the number of frames processed across all sessions.
func (e *Engine) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Closed returns the number of sessions that were closed.
func (e *Engine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

var _ vad.Engine = (*Engine)(nil)

type session struct {
	engine *Engine
	pos    int
}

func (s *session) ProcessFrame([]byte) (vad.VADEvent, error) {
	e := s.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames++
	if e.FrameErr != nil {
		return vad.VADEvent{}, e.FrameErr
	}
	typ := e.After
	if s.pos < len(e.Script) {
		typ = e.Script[s.pos]
		s.pos++
	}
	ev := vad.VADEvent{Type: typ}
	if typ.Speaking() {
		ev.Probability = 1
	}
	return ev, nil
}

func (s *session) Reset() { s.pos = 0 }

func (s *session) Close() error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.engine.closed++
	return nil
}
