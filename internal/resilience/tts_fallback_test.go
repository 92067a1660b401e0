package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/pinocchio/pkg/audio"
	"github.com/MrWong99/pinocchio/pkg/provider/tts"
	ttsmock "github.com/MrWong99/pinocchio/pkg/provider/tts/mock"
)

func TestTTSFallback_Synthesize_PrimarySuccess(t *testing.T) {
	want := audio.AudioFrame{Data: []byte{1, 2}, SampleRate: 24000, Channels: 1}
	primary := &ttsmock.Provider{SynthesizeResult: want}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary, nil)

	got, err := fb.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "fable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SampleRate != 24000 || len(got.Data) != 2 {
		t.Fatalf("frame = %+v", got)
	}
	if len(secondary.SynthesizeCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.SynthesizeCalls))
	}
}

func TestTTSFallback_Synthesize_FailoverUsesFallbackVoice(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary, &tts.VoiceProfile{ID: "p225"})

	if _, err := fb.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "rachel", SpeedFactor: 0.85}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(secondary.SynthesizeCalls) != 1 {
		t.Fatalf("secondary called %d times, want 1", len(secondary.SynthesizeCalls))
	}
	v := secondary.SynthesizeCalls[0].Voice
	if v.ID != "p225" || v.SpeedFactor != 0.85 {
		t.Errorf("fallback voice = %+v, want p225 at 0.85", v)
	}
	if primary.SynthesizeCalls[0].Voice.ID != "rachel" {
		t.Errorf("primary voice = %+v", primary.SynthesizeCalls[0].Voice)
	}
}

func TestTTSFallback_Synthesize_AllFail(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("down")}
	fb := NewTTSFallback(primary, "primary", FallbackConfig{})

	_, err := fb.Synthesize(context.Background(), "hello", tts.VoiceProfile{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_EmptyTextIsTerminal(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: tts.ErrEmptyText}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary, nil)

	if _, err := fb.Synthesize(context.Background(), "", tts.VoiceProfile{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
	if len(secondary.SynthesizeCalls) != 0 {
		t.Error("secondary should not be tried for empty text")
	}
}

func TestTTSFallback_ListVoices_Failover(t *testing.T) {
	primary := &ttsmock.Provider{ListVoicesErr: errors.New("unavailable")}
	secondary := &ttsmock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Alice"}}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary, nil)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "v1" {
		t.Fatalf("voices = %+v", voices)
	}
}
