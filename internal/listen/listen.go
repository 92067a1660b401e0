// Package listen turns the continuous microphone stream into discrete
// utterances.
//
// A [Listener] waits for speech, buffers it together with a short pre-roll,
// and returns when the speaker pauses or the phrase limit is reached. Waiting
// and phrase limits are measured in captured audio time, with a wall-clock
// guard for a stalled device. Speech detection is delegated to a [vad.Engine];
// the energy threshold comes from [Listener.Calibrate].
package listen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/vad"
)

var (
	// ErrWaitTimeout is returned by Listen when no speech started within the
	// wait timeout. It is the normal outcome of a quiet room.
	ErrWaitTimeout = errors.New("listen: no speech within wait timeout")

	// ErrSourceClosed is returned when the capture stream ends.
	ErrSourceClosed = errors.New("listen: audio source closed")
)

// Source is the capture side of an [audio.Connection].
type Source interface {
	InputStream() <-chan audio.AudioFrame
	InputFormat() audio.Format
}

// Config tunes a [Listener].
type Config struct {
	// WaitTimeout bounds how long Listen waits for speech to start.
	WaitTimeout time.Duration

	// PhraseLimit bounds the length of a single utterance.
	PhraseLimit time.Duration

	// Pause is the silence that ends an utterance.
	Pause time.Duration

	// PreRoll is the audio kept from before speech was detected.
	PreRoll time.Duration

	// FrameSize is the VAD analysis window.
	FrameSize time.Duration

	// MinSpeech is how long the level must stay above the threshold before
	// speech is considered started.
	MinSpeech time.Duration

	// MinThreshold is the lowest energy threshold Calibrate will set.
	MinThreshold float64

	// DynamicRatio multiplies the measured ambient level during calibration.
	DynamicRatio float64

	// SilenceRatio derives the VAD silence threshold from the speech threshold.
	SilenceRatio float64
}

// DefaultConfig returns the stock listening parameters.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:  time.Second,
		PhraseLimit:  8 * time.Second,
		Pause:        800 * time.Millisecond,
		PreRoll:      300 * time.Millisecond,
		FrameSize:    30 * time.Millisecond,
		MinSpeech:    60 * time.Millisecond,
		MinThreshold: 300,
		DynamicRatio: 1.5,
		SilenceRatio: 0.8,
	}
}

// Utterance is one captured phrase.
type Utterance struct {
	// Audio is mono PCM at the source sample rate.
	Audio audio.AudioFrame

	// Truncated is set when the phrase limit cut the utterance short.
	Truncated bool
}

// Duration returns the length of the captured audio.
func (u Utterance) Duration() time.Duration { return u.Audio.Duration() }

// Listener captures utterances from a [Source]. Listen and Calibrate must not
// be called concurrently.
type Listener struct {
	src    Source
	engine vad.Engine
	cfg    Config

	mu        sync.Mutex
	threshold float64
}

// New returns a Listener. The initial threshold is cfg.MinThreshold.
func New(src Source, engine vad.Engine, cfg Config) *Listener {
	return &Listener{src: src, engine: engine, cfg: cfg, threshold: cfg.MinThreshold}
}

// Threshold returns the current energy threshold.
func (l *Listener) Threshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold
}

// SetThreshold overrides the energy threshold.
func (l *Listener) SetThreshold(t float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.threshold = max(t, l.cfg.MinThreshold)
}

func (l *Listener) mono() audio.Format {
	return audio.Format{SampleRate: l.src.InputFormat().SampleRate, Channels: 1}
}

// Calibrate measures ambient noise for d of captured audio and sets the
// threshold to the ambient RMS times DynamicRatio, never below MinThreshold.
func (l *Listener) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	format := l.mono()
	in := l.src.InputStream()
	guard := time.NewTimer(d + l.cfg.WaitTimeout)
	defer guard.Stop()

	var pcm []byte
	var captured time.Duration
	for captured < d {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-guard.C:
			return 0, fmt.Errorf("listen: calibrate: only %v of audio captured: %w", captured, ErrWaitTimeout)
		case f, ok := <-in:
			if !ok {
				return 0, ErrSourceClosed
			}
			f = audio.Convert(f, format)
			pcm = append(pcm, f.Data...)
			captured += f.Duration()
		}
	}

	l.SetThreshold(audio.RMS(pcm) * l.cfg.DynamicRatio)
	return l.Threshold(), nil
}

// Flush discards frames already queued on the source, such as the speaker's
// own voice captured during playback. It never blocks.
func (l *Listener) Flush() int {
	in := l.src.InputStream()
	n := 0
	for {
		select {
		case _, ok := <-in:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Listen waits for speech and returns the next utterance. It returns
// [ErrWaitTimeout] when no speech starts within WaitTimeout.
func (l *Listener) Listen(ctx context.Context) (Utterance, error) {
	format := l.mono()
	threshold := l.Threshold()
	frameMs := int(l.cfg.FrameSize / time.Millisecond)
	sess, err := l.engine.NewSession(vad.Config{
		SampleRate:       format.SampleRate,
		FrameSizeMs:      frameMs,
		SpeechThreshold:  threshold,
		SilenceThreshold: threshold * l.cfg.SilenceRatio,
		MinSpeechMs:      int(l.cfg.MinSpeech / time.Millisecond),
		MinSilenceMs:     int(l.cfg.Pause / time.Millisecond),
	})
	if err != nil {
		return Utterance{}, fmt.Errorf("listen: vad session: %w", err)
	}
	defer sess.Close()

	c := capture{
		cfg:        l.cfg,
		format:     format,
		frameBytes: format.SampleRate * frameMs / 1000 * 2,
		frameDur:   time.Duration(frameMs) * time.Millisecond,
	}
	c.prerollFrames = int(l.cfg.PreRoll / c.frameDur)

	in := l.src.InputStream()
	guard := time.NewTimer(2 * l.cfg.WaitTimeout)
	defer guard.Stop()

	for {
		select {
		case <-ctx.Done():
			return Utterance{}, ctx.Err()
		case <-guard.C:
			if !c.started {
				return Utterance{}, ErrWaitTimeout
			}
			return c.utterance(true), nil
		case f, ok := <-in:
			if !ok {
				if c.started {
					return c.utterance(false), nil
				}
				return Utterance{}, ErrSourceClosed
			}
			wasStarted := c.started
			done, err := c.feed(sess, audio.Convert(f, format).Data)
			if err != nil {
				return Utterance{}, err
			}
			if done != nil {
				return *done, nil
			}
			if c.started && !wasStarted {
				guard.Reset(l.cfg.PhraseLimit + l.cfg.WaitTimeout)
			}
		}
	}
}

// capture is the per-Listen state machine.
type capture struct {
	cfg           Config
	format        audio.Format
	frameBytes    int
	frameDur      time.Duration
	prerollFrames int

	pending []byte
	preroll [][]byte
	speech  []byte
	waited  time.Duration
	phrase  time.Duration
	started bool
}

// feed consumes pcm and returns a finished utterance, if any.
func (c *capture) feed(sess vad.SessionHandle, pcm []byte) (*Utterance, error) {
	c.pending = append(c.pending, pcm...)
	for len(c.pending) >= c.frameBytes {
		chunk := make([]byte, c.frameBytes)
		copy(chunk, c.pending)
		c.pending = c.pending[c.frameBytes:]

		ev, err := sess.ProcessFrame(chunk)
		if err != nil {
			return nil, fmt.Errorf("listen: vad: %w", err)
		}

		if !c.started {
			c.waited += c.frameDur
			if ev.Type == vad.VADSpeechStart {
				c.started = true
				for _, p := range c.preroll {
					c.speech = append(c.speech, p...)
				}
				c.preroll = nil
				c.speech = append(c.speech, chunk...)
				c.phrase = c.frameDur
				continue
			}
			if c.prerollFrames > 0 {
				c.preroll = append(c.preroll, chunk)
				if len(c.preroll) > c.prerollFrames {
					c.preroll = c.preroll[1:]
				}
			}
			if c.waited >= c.cfg.WaitTimeout {
				return nil, ErrWaitTimeout
			}
			continue
		}

		c.speech = append(c.speech, chunk...)
		c.phrase += c.frameDur
		if ev.Type == vad.VADSpeechEnd {
			u := c.utterance(false)
			return &u, nil
		}
		if c.phrase >= c.cfg.PhraseLimit {
			u := c.utterance(true)
			return &u, nil
		}
	}
	return nil, nil
}

func (c *capture) utterance(truncated bool) Utterance {
	return Utterance{
		Audio: audio.AudioFrame{
			Data:       c.speech,
			SampleRate: c.format.SampleRate,
			Channels:   1,
		},
		Truncated: truncated,
	}
}
