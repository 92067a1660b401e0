package stt

import (
	"strings"
	"time"
)

// Transcript is the recognized text of one utterance.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language reported by the provider, if any.
	Language string

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available.
	Words []WordDetail

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost represents a keyword to boost in STT recognition.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "Geppetto").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// blankMarkers are placeholder outputs some engines emit for silence or noise.
var blankMarkers = []string{"[BLANK_AUDIO]", "[SILENCE]", "(silence)", "[NO SPEECH]", "[MUSIC]", "(music)"}

// CleanText trims text and strips engine placeholders for non-speech. An
// empty result means nothing was recognized.
func CleanText(text string) string {
	for _, m := range blankMarkers {
		text = strings.ReplaceAll(text, m, "")
	}
	return strings.Join(strings.Fields(text), " ")
}
