package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/stt"
	sttmock "github.com/MrWong99/pinocchio/pkg/provider/stt/mock"
)

var utterance = audio.AudioFrame{Data: make([]byte, 320), SampleRate: 16000, Channels: 1}

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: stt.Transcript{Text: "hello"}}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Transcribe(context.Background(), utterance, stt.Config{Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("Text = %q, want hello", got.Text)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
	if primary.TranscribeCalls[0].Cfg.Language != "en" {
		t.Errorf("config not forwarded: %+v", primary.TranscribeCalls[0].Cfg)
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("503 from upstream")}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "from secondary"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	got, err := fb.Transcribe(context.Background(), utterance, stt.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "from secondary" {
		t.Fatalf("Text = %q", got.Text)
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("down")}
	fb := NewSTTFallback(primary, "primary", FallbackConfig{})

	_, err := fb.Transcribe(context.Background(), utterance, stt.Config{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if errors.Is(err, stt.ErrUnrecognized) {
		t.Error("an outage must not look like unrecognized speech")
	}
}

func TestSTTFallback_Unrecognized_NoFailoverNoTrip(t *testing.T) {
	primary := &sttmock.Provider{Err: fmt.Errorf("whisper: %w", stt.ErrUnrecognized)}
	secondary := &sttmock.Provider{Result: stt.Transcript{Text: "should not be used"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback("secondary", secondary)

	for range 3 {
		_, err := fb.Transcribe(context.Background(), utterance, stt.Config{})
		if !errors.Is(err, stt.ErrUnrecognized) {
			t.Fatalf("err = %v, want ErrUnrecognized", err)
		}
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
	if s := fb.States()["primary"]; s != StateClosed {
		t.Errorf("primary breaker = %v, want closed", s)
	}
}
