package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV is returned by [ParseWAV] for data that is not 16-bit PCM WAV.
var ErrInvalidWAV = errors.New("audio: invalid WAV")

const wavHeaderSize = 44

// EncodeWAV wraps the frame's PCM in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(frame AudioFrame) []byte {
	const bps = 16
	channels := max(frame.Channels, 1)
	byteRate := frame.SampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	size := len(frame.Data)

	buf := make([]byte, wavHeaderSize+size)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+size))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(frame.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bps)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(size))
	copy(buf[wavHeaderSize:], frame.Data)
	return buf
}

// ParseWAV extracts the PCM payload of a 16-bit PCM WAV file. Chunks other
// than "fmt " and "data" are skipped. A data chunk size larger than the file
// (as written by streaming encoders) is truncated to what is present.
func ParseWAV(wav []byte) (AudioFrame, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return AudioFrame{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var frame AudioFrame
	foundFmt := false
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(wav) {
				return AudioFrame{}, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			f := wav[body:]
			if format := binary.LittleEndian.Uint16(f[0:2]); format != 1 && format != 0xFFFE {
				return AudioFrame{}, fmt.Errorf("%w: unsupported encoding %d", ErrInvalidWAV, format)
			}
			if bits := binary.LittleEndian.Uint16(f[14:16]); bits != 16 {
				return AudioFrame{}, fmt.Errorf("%w: %d bits per sample, want 16", ErrInvalidWAV, bits)
			}
			frame.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			frame.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return AudioFrame{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			end := min(body+size, len(wav))
			end -= (end - body) % 2
			frame.Data = wav[body:end]
			return frame, nil
		}

		offset = body + size
		if size%2 != 0 {
			offset++
		}
	}
	return AudioFrame{}, fmt.Errorf("%w: missing data chunk", ErrInvalidWAV)
}
