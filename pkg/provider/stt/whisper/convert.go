package whisper

import (
	"github.com/MrWong99/pinocchio/pkg/audio"
)

// frameToFloat32 converts frame to 16 kHz mono float32 samples in
// [-1.0, 1.0), the input of the whisper.cpp bindings.
func frameToFloat32(frame audio.AudioFrame) []float32 {
	samples := audio.Samples(audio.Convert(frame, modelFormat).Data)
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
