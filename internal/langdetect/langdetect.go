// Package langdetect identifies the language of recognized text.
package langdetect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// ErrUndetermined is returned when no language could be identified with
// sufficient confidence. Callers fall back to their default language.
var ErrUndetermined = errors.New("langdetect: language undetermined")

// Detector returns an ISO 639-1 code for text.
type Detector interface {
	Detect(text string) (string, error)
}

// Option configures a [Whatlang] detector.
type Option func(*Whatlang) error

// WithAllow restricts detection to the given ISO 639-1 codes.
func WithAllow(codes ...string) Option {
	return func(w *Whatlang) error {
		for _, c := range codes {
			l, ok := byISO6391(c)
			if !ok {
				return fmt.Errorf("langdetect: unsupported language %q", c)
			}
			if w.opts.Whitelist == nil {
				w.opts.Whitelist = make(map[whatlanggo.Lang]bool)
			}
			w.opts.Whitelist[l] = true
		}
		return nil
	}
}

// WithMinConfidence rejects results below c (0..1).
func WithMinConfidence(c float64) Option {
	return func(w *Whatlang) error {
		if c < 0 || c > 1 {
			return fmt.Errorf("langdetect: min confidence %v out of range [0,1]", c)
		}
		w.minConfidence = c
		return nil
	}
}

var _ Detector = (*Whatlang)(nil)

// Whatlang is a [Detector] backed by trigram and script analysis.
type Whatlang struct {
	opts          whatlanggo.Options
	minConfidence float64
}

// New returns a detector configured by opts.
func New(opts ...Option) (*Whatlang, error) {
	w := &Whatlang{}
	for _, o := range opts {
		if err := o(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Detect implements [Detector].
func (w *Whatlang) Detect(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	info := whatlanggo.DetectWithOptions(text, w.opts)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", ErrUndetermined
	}
	if info.Confidence < w.minConfidence {
		return "", fmt.Errorf("%w: %s at confidence %.2f", ErrUndetermined, code, info.Confidence)
	}
	return code, nil
}

func byISO6391(code string) (whatlanggo.Lang, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for l := range whatlanggo.Langs {
		if l.Iso6391() == code {
			return l, true
		}
	}
	return 0, false
}
