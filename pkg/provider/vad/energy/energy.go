// Package energy implements [vad.Engine] with an RMS energy detector and
// hysteresis. It needs no model and suits quiet rooms with a single speaker.
//
// Thresholds in [vad.Config] are RMS amplitudes of int16 PCM (0–32768).
// A typical quiet room measures 50–300; normal speech 1000 and above.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/vad"
)

var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

// ErrClosed is returned by ProcessFrame after Close.
var ErrClosed = errors.New("energy: session closed")

// Engine creates energy VAD sessions. The zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine { return &Engine{} }

// NewSession implements [vad.Engine].
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	var errs []error
	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate %d must be positive", cfg.SampleRate))
	}
	if cfg.FrameSizeMs <= 0 {
		errs = append(errs, fmt.Errorf("frame size %dms must be positive", cfg.FrameSizeMs))
	}
	if cfg.SpeechThreshold <= 0 {
		errs = append(errs, fmt.Errorf("speech threshold %v must be positive", cfg.SpeechThreshold))
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		errs = append(errs, fmt.Errorf("silence threshold %v must be within [0, %v]", cfg.SilenceThreshold, cfg.SpeechThreshold))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("energy: invalid config: %w", err)
	}

	return &Session{
		cfg:           cfg,
		frameBytes:    cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2,
		speechFrames:  framesFor(cfg.MinSpeechMs, cfg.FrameSizeMs),
		silenceFrames: framesFor(cfg.MinSilenceMs, cfg.FrameSizeMs),
	}, nil
}

func framesFor(ms, frameMs int) int {
	return max(1, int(math.Ceil(float64(ms)/float64(frameMs))))
}

// Session is a single-stream energy detector.
type Session struct {
	cfg           vad.Config
	frameBytes    int
	speechFrames  int
	silenceFrames int

	mu           sync.Mutex
	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

// ProcessFrame implements [vad.SessionHandle].
func (s *Session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.VADEvent{}, ErrClosed
	}
	if len(frame) != s.frameBytes {
		return vad.VADEvent{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	level := audio.RMS(frame)
	prob := min(1, level/(2*s.cfg.SpeechThreshold))
	ev := vad.VADEvent{Probability: prob}

	if s.inSpeech {
		if level < s.cfg.SilenceThreshold {
			s.silenceCount++
			if s.silenceCount >= s.silenceFrames {
				s.inSpeech = false
				s.silenceCount = 0
				ev.Type = vad.VADSpeechEnd
				return ev, nil
			}
		} else {
			s.silenceCount = 0
		}
		ev.Type = vad.VADSpeechContinue
		return ev, nil
	}

	if level >= s.cfg.SpeechThreshold {
		s.speechCount++
		if s.speechCount >= s.speechFrames {
			s.inSpeech = true
			s.speechCount = 0
			ev.Type = vad.VADSpeechStart
			return ev, nil
		}
	} else {
		s.speechCount = 0
	}
	ev.Type = vad.VADSilence
	return ev, nil
}

// Reset implements [vad.SessionHandle].
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

// Close implements [vad.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
