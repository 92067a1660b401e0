package audio

import "time"

// AudioFrame is a chunk of little-endian int16 PCM audio. Frames are the unit
// of transport between the microphone, the listener, the STT and TTS
// providers, and the speaker.
type AudioFrame struct {
	// PCM audio data.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for capture, 24000 for some TTS output).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Format returns the frame's sample rate and channel count.
func (f AudioFrame) Format() Format {
	return Format{SampleRate: f.SampleRate, Channels: f.Channels}
}

// Concat joins frames of identical format into one frame. The first frame
// determines the format and timestamp; frames in a different format are
// converted.
func Concat(frames []AudioFrame) AudioFrame {
	if len(frames) == 0 {
		return AudioFrame{}
	}
	target := frames[0].Format()
	size := 0
	for _, f := range frames {
		size += len(f.Data)
	}
	data := make([]byte, 0, size)
	for _, f := range frames {
		data = append(data, Convert(f, target).Data...)
	}
	return AudioFrame{
		Data:       data,
		SampleRate: target.SampleRate,
		Channels:   target.Channels,
		Timestamp:  frames[0].Timestamp,
	}
}
