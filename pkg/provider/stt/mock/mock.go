// Package mock provides test doubles for the stt package interfaces.
//
// Provider returns queued results in order, then falls back to Result and
// Err. Every call is recorded so tests can inspect the audio and config the
// caller sent.
//
// Example:
//
//	p := &mock.Provider{Results: []mock.Result{
//	    {Transcript: stt.Transcript{Text: "hello"}},
//	    {Err: stt.ErrUnrecognized},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
)

// Result is one scripted Transcribe outcome.
type Result struct {
	Transcript stt.Transcript
	Err        error
}

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Frame is a copy of the audio passed to Transcribe.
	Frame audio.AudioFrame
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results are consumed one per call before Result/Err apply.
	Results []Result

	// Result is returned once Results is exhausted.
	Result stt.Transcript

	// Err, if non-nil, is returned once Results is exhausted.
	Err error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result. A
// cancelled ctx is reported before any result is consumed.
func (p *Provider) Transcribe(ctx context.Context, frame audio.AudioFrame, cfg stt.Config) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := frame
	cp.Data = append([]byte(nil), frame.Data...)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Frame: cp, Cfg: cfg})

	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	if len(p.Results) > 0 {
		r := p.Results[0]
		p.Results = p.Results[1:]
		return r.Transcript, r.Err
	}
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
