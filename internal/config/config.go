// Package config provides the configuration schema, loader, and provider
// registry for the Pinocchio voice confusion loop.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LexiconSource selects where synonyms come from.
type LexiconSource string

const (
	// LexiconBuiltin uses the small embedded snapshot.
	LexiconBuiltin LexiconSource = "builtin"

	// LexiconWordNet loads an Open English WordNet JSON file.
	LexiconWordNet LexiconSource = "wordnet"

	// LexiconPostgres loads a snapshot imported into PostgreSQL.
	LexiconPostgres LexiconSource = "postgres"
)

// IsValid reports whether s is a recognised lexicon source.
func (s LexiconSource) IsValid() bool {
	switch s {
	case LexiconBuiltin, LexiconWordNet, LexiconPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure for Pinocchio.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Listen    ListenConfig    `yaml:"listen"`
	Voice     VoiceConfig     `yaml:"voice"`
	Confusion ConfusionConfig `yaml:"confusion"`
	Lexicon   LexiconConfig   `yaml:"lexicon"`
	Language  LanguageConfig  `yaml:"language"`
	Journal   JournalConfig   `yaml:"journal"`
	Loop      LoopConfig      `yaml:"loop"`
}

// ServerConfig holds the diagnostics server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
	VAD          ProviderEntry   `yaml:"vad"`
	Audio        ProviderEntry   `yaml:"audio"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3", "whisper-1").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// ListenConfig tunes speech capture.
type ListenConfig struct {
	// WaitTimeout bounds how long a listen waits for speech to start.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// PhraseLimit bounds a single utterance.
	PhraseLimit time.Duration `yaml:"phrase_limit"`

	// Pause is the silence that ends an utterance.
	Pause time.Duration `yaml:"pause"`

	// Calibration is the ambient-noise measurement at startup. Zero skips it.
	Calibration time.Duration `yaml:"calibration"`

	// MinThreshold floors the calibrated energy threshold (RMS).
	MinThreshold float64 `yaml:"min_threshold"`

	// DynamicRatio multiplies the measured ambient level.
	DynamicRatio float64 `yaml:"dynamic_ratio"`

	// Language is the BCP-47 tag passed to speech recognition
	// (e.g., "en-US"). "multi" asks the provider to detect it.
	Language string `yaml:"language"`
}

// VoiceConfig specifies the TTS voice.
type VoiceConfig struct {
	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// Name is a human-readable label used in logs.
	Name string `yaml:"name"`

	// SpeedFactor adjusts speaking rate in the range [0.25, 4.0]. Providers
	// clamp it to what they support.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// ConfusionConfig tunes the text transformation. Probabilities are pointers so
// that an explicit 0 can be told apart from an omitted value.
type ConfusionConfig struct {
	RewriteProbability            *float64 `yaml:"rewrite_probability"`
	SynonymProbability            *float64 `yaml:"synonym_probability"`
	ConnectorProbability          *float64 `yaml:"connector_probability"`
	ShuffleProbability            *float64 `yaml:"shuffle_probability"`
	MalayalamConnectorProbability *float64 `yaml:"malayalam_connector_probability"`
	MalayalamSwapProbability      *float64 `yaml:"malayalam_swap_probability"`

	// CatchAllCountsAsRewrite makes the catch-all rule end the dispatch.
	CatchAllCountsAsRewrite *bool `yaml:"catch_all_counts_as_rewrite"`

	EnglishConnectors   []string `yaml:"english_connectors"`
	MalayalamConnectors []string `yaml:"malayalam_connectors"`

	// ExitCommands end the session when spoken on their own.
	ExitCommands []string `yaml:"exit_commands"`

	// Seed fixes the random source. Zero seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

// LexiconConfig selects the synonym source.
type LexiconConfig struct {
	Source LexiconSource `yaml:"source"`

	// Path is the WordNet JSON file (optionally gzip-compressed) for the
	// wordnet source.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string for the postgres source.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LanguageConfig tunes language detection.
type LanguageConfig struct {
	// Default is used when detection fails. Default: "en".
	Default string `yaml:"default"`

	// Allow restricts detection to these ISO 639-1 codes. Empty allows all.
	Allow []string `yaml:"allow"`

	// MinConfidence rejects less certain detections.
	MinConfidence float64 `yaml:"min_confidence"`
}

// JournalConfig selects where interactions are recorded. At most one of Path
// and PostgresDSN may be set; both empty disables the journal.
type JournalConfig struct {
	// Path is a JSON-lines file.
	Path string `yaml:"path"`

	// PostgresDSN is a PostgreSQL connection string.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoopConfig tunes the interaction loop.
type LoopConfig struct {
	// ServiceBackoff is the pause after a speech service failure.
	ServiceBackoff time.Duration `yaml:"service_backoff"`

	// ErrorBackoff is the pause after any other failed iteration.
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}
