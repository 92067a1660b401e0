package audio_test

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/pinocchio/pkg/audio"
)

func TestMonoToStereo(t *testing.T) {
	got := audio.Samples(audio.MonoToStereo(audio.FromSamples([]int16{100, 200, 300})))
	want := []int16{100, 100, 200, 200, 300, 300}
	if !slices.Equal(got, want) {
		t.Errorf("MonoToStereo = %v, want %v", got, want)
	}
}

func TestStereoToMono(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{"average", []int16{100, 200, -100, -200}, []int16{150, -150}},
		{"no overflow", []int16{32767, 32767}, []int16{32767}},
		{"negative extreme", []int16{-32768, -32768}, []int16{-32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.Samples(audio.StereoToMono(audio.FromSamples(tt.in)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("StereoToMono(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResampleMono16(t *testing.T) {
	pcm := audio.FromSamples([]int16{0, 100, 200, 300})

	if out := audio.ResampleMono16(pcm, 16000, 16000); len(out) != len(pcm) {
		t.Errorf("same rate: len = %d, want %d", len(out), len(pcm))
	}
	up := audio.Samples(audio.ResampleMono16(pcm, 8000, 16000))
	if want := []int16{0, 50, 100, 150, 200, 250, 300, 300}; !slices.Equal(up, want) {
		t.Errorf("upsample = %v, want %v", up, want)
	}
	down := audio.Samples(audio.ResampleMono16(pcm, 16000, 8000))
	if want := []int16{0, 200}; !slices.Equal(down, want) {
		t.Errorf("downsample = %v, want %v", down, want)
	}
	if out := audio.ResampleMono16(pcm, 0, 8000); len(out) != len(pcm) {
		t.Error("invalid rate must return input unchanged")
	}
}

func TestConvert(t *testing.T) {
	stereo48 := audio.AudioFrame{
		Data:       audio.FromSamples([]int16{100, 300, 100, 300, 100, 300}),
		SampleRate: 48000,
		Channels:   2,
		Timestamp:  time.Second,
	}
	got := audio.Convert(stereo48, audio.Format{SampleRate: 16000, Channels: 1})
	if got.SampleRate != 16000 || got.Channels != 1 || got.Timestamp != time.Second {
		t.Fatalf("Convert format = %v ts %v", got.Format(), got.Timestamp)
	}
	if s := audio.Samples(got.Data); !slices.Equal(s, []int16{200}) {
		t.Errorf("Convert samples = %v, want [200]", s)
	}

	same := audio.AudioFrame{Data: []byte{1, 2}, SampleRate: 16000, Channels: 1}
	if out := audio.Convert(same, same.Format()); &out.Data[0] != &same.Data[0] {
		t.Error("Convert must not copy frames already in the target format")
	}
}

func TestFormatConverter_OddBytes(t *testing.T) {
	c := audio.FormatConverter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	out := c.Convert(audio.AudioFrame{Data: []byte{1, 2, 3}, SampleRate: 16000, Channels: 1})
	if len(out.Data) != 0 {
		t.Errorf("odd frame: len = %d, want 0", len(out.Data))
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(audio.FromSamples([]int16{1000, -1000, 1000, -1000})); math.Abs(got-1000) > 1e-9 {
		t.Errorf("RMS = %v, want 1000", got)
	}
}

func TestFrameDurationAndConcat(t *testing.T) {
	a := audio.AudioFrame{Data: make([]byte, 3200), SampleRate: 16000, Channels: 1}
	b := audio.AudioFrame{Data: make([]byte, 1600), SampleRate: 16000, Channels: 1}
	if d := a.Duration(); d != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", d)
	}
	joined := audio.Concat([]audio.AudioFrame{a, b})
	if joined.Duration() != 150*time.Millisecond {
		t.Errorf("Concat duration = %v, want 150ms", joined.Duration())
	}
	if empty := audio.Concat(nil); len(empty.Data) != 0 {
		t.Error("Concat(nil) must be empty")
	}
}

func TestWAVRoundTrip(t *testing.T) {
	frame := audio.AudioFrame{Data: audio.FromSamples([]int16{1, -2, 3, -4}), SampleRate: 22050, Channels: 1}
	got, err := audio.ParseWAV(audio.EncodeWAV(frame))
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if got.SampleRate != 22050 || got.Channels != 1 || !slices.Equal(got.Data, frame.Data) {
		t.Errorf("ParseWAV = %+v, want %+v", got, frame)
	}
}

func TestParseWAV_SkipsChunksAndTruncates(t *testing.T) {
	wav := audio.EncodeWAV(audio.AudioFrame{Data: audio.FromSamples([]int16{7, 8}), SampleRate: 16000, Channels: 1})
	// Insert a LIST chunk with odd size between fmt and data.
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	withList := slices.Concat(wav[:36], list, wav[36:])
	// Claim a larger data size than present.
	withList[36+len(list)+4] = 0xFF

	got, err := audio.ParseWAV(withList)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if s := audio.Samples(got.Data); !slices.Equal(s, []int16{7, 8}) {
		t.Errorf("samples = %v, want [7 8]", s)
	}
}

func TestParseWAV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("RIFF")},
		{"not wave", []byte("RIFF\x00\x00\x00\x00AVI ")},
		{"no data", audio.EncodeWAV(audio.AudioFrame{SampleRate: 16000, Channels: 1})[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audio.ParseWAV(tt.data); !errors.Is(err, audio.ErrInvalidWAV) {
				t.Errorf("ParseWAV error = %v, want ErrInvalidWAV", err)
			}
		})
	}
}
