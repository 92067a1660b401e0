package tts

// VoiceProfile describes the voice used to speak responses.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// provider's default voice where one exists.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default, 0 = unset).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}

// Speed returns SpeedFactor clamped to [min, max], or 1.0 when unset.
func (v VoiceProfile) Speed(lo, hi float64) float64 {
	if v.SpeedFactor <= 0 {
		return 1.0
	}
	return max(lo, min(hi, v.SpeedFactor))
}
