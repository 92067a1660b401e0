package resilience

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

var errNoAnswer = errors.New("no answer")

// script maps a member value to the error it returns; absent members answer.
type script map[string]error

func (s script) call(calls *[]string) func(string) (string, error) {
	return func(v string) (string, error) {
		*calls = append(*calls, v)
		if err := s[v]; err != nil {
			return "", err
		}
		return "from " + v, nil
	}
}

func newGroup(cfg FallbackConfig, names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], cfg)
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestExecuteWithResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		script    script
		want      string
		wantCalls []string
		wantErr   error
	}{
		{
			name:      "primary answers",
			want:      "from deepgram",
			wantCalls: []string{"deepgram"},
		},
		{
			name:      "fails over in order",
			script:    script{"deepgram": errTest},
			want:      "from whisper",
			wantCalls: []string{"deepgram", "whisper"},
		},
		{
			name:      "all fail",
			script:    script{"deepgram": errTest, "whisper": errTest, "openai": errTest},
			wantCalls: []string{"deepgram", "whisper", "openai"},
			wantErr:   ErrAllFailed,
		},
		{
			name:      "terminal error stops the chain",
			script:    script{"deepgram": fmt.Errorf("wrapped: %w", errNoAnswer)},
			wantCalls: []string{"deepgram"},
			wantErr:   errNoAnswer,
		},
		{
			name:      "cancellation stops the chain",
			script:    script{"deepgram": context.Canceled},
			wantCalls: []string{"deepgram"},
			wantErr:   context.Canceled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fg := newGroup(FallbackConfig{
				Terminal: func(err error) bool { return errors.Is(err, errNoAnswer) },
			}, "deepgram", "whisper", "openai")

			var calls []string
			got, err := ExecuteWithResult(fg, tt.script.call(&calls))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if tt.wantErr != ErrAllFailed && errors.Is(err, ErrAllFailed) {
					t.Errorf("terminal error wrapped in ErrAllFailed: %v", err)
				}
			} else if err != nil || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, err, tt.want)
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenMember(t *testing.T) {
	t.Parallel()
	fg := newGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	}, "deepgram", "whisper")

	down := script{"deepgram": errTest}
	var calls []string
	for range 2 {
		_ = fg.Execute(func(v string) error { _, err := down.call(&calls)(v); return err })
	}
	if s := fg.States(); s["deepgram"] != StateOpen || s["whisper"] != StateClosed {
		t.Fatalf("states = %v", s)
	}

	calls = nil
	if _, err := ExecuteWithResult(fg, script{}.call(&calls)); err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if !slices.Equal(calls, []string{"whisper"}) {
		t.Errorf("calls = %v, want whisper only", calls)
	}
}

func TestFallbackGroup_TerminalKeepsBreakerClosed(t *testing.T) {
	t.Parallel()
	fg := newGroup(FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
		Terminal:       func(err error) bool { return errors.Is(err, errNoAnswer) },
	}, "deepgram", "whisper")

	for range 3 {
		_ = fg.Execute(func(string) error { return errNoAnswer })
	}
	if s := fg.States()["deepgram"]; s != StateClosed {
		t.Errorf("deepgram breaker = %v, want closed", s)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()
	fg := newGroup(FallbackConfig{}, "deepgram", "whisper", "openai")
	if got := fg.Names(); !slices.Equal(got, []string{"deepgram", "whisper", "openai"}) {
		t.Fatalf("Names() = %v", got)
	}
}
