package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"deepgram", "whisper", "whisper-native", "openai"},
	"tts":   {"elevenlabs", "coqui", "openai"},
	"vad":   {"energy"},
	"audio": {"portaudio"},
}

// DefaultExitCommands are the spoken words that end a session.
var DefaultExitCommands = []string{"exit", "quit", "stop", "goodbye", "bye"}

// autoLanguages are listen.language values that ask the provider to detect
// the language instead of naming one.
var autoLanguages = []string{"multi", "auto"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every omitted setting with its stock value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Providers.VAD.Name == "" {
		cfg.Providers.VAD.Name = "energy"
	}
	if cfg.Providers.Audio.Name == "" {
		cfg.Providers.Audio.Name = "portaudio"
	}

	l := &cfg.Listen
	setDuration(&l.WaitTimeout, time.Second)
	setDuration(&l.PhraseLimit, 8*time.Second)
	setDuration(&l.Pause, 800*time.Millisecond)
	setDuration(&l.Calibration, time.Second)
	if l.MinThreshold == 0 {
		l.MinThreshold = 300
	}
	if l.DynamicRatio == 0 {
		l.DynamicRatio = 1.5
	}
	if l.Language == "" {
		l.Language = "en-US"
	}

	if cfg.Voice.SpeedFactor == 0 {
		cfg.Voice.SpeedFactor = 0.85
	}

	c := &cfg.Confusion
	setFloat(&c.RewriteProbability, 0.5)
	setFloat(&c.SynonymProbability, 0.3)
	setFloat(&c.ConnectorProbability, 0.4)
	setFloat(&c.ShuffleProbability, 0.3)
	setFloat(&c.MalayalamConnectorProbability, 0.5)
	setFloat(&c.MalayalamSwapProbability, 0.3)
	if c.CatchAllCountsAsRewrite == nil {
		t := true
		c.CatchAllCountsAsRewrite = &t
	}
	if len(c.ExitCommands) == 0 {
		c.ExitCommands = slices.Clone(DefaultExitCommands)
	}

	if cfg.Lexicon.Source == "" {
		switch {
		case cfg.Lexicon.Path != "":
			cfg.Lexicon.Source = LexiconWordNet
		case cfg.Lexicon.PostgresDSN != "":
			cfg.Lexicon.Source = LexiconPostgres
		default:
			cfg.Lexicon.Source = LexiconBuiltin
		}
	}

	if cfg.Language.Default == "" {
		cfg.Language.Default = "en"
	}

	setDuration(&cfg.Loop.ServiceBackoff, 2*time.Second)
	setDuration(&cfg.Loop.ErrorBackoff, time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

func setFloat(p **float64, def float64) {
	if *p == nil {
		v := def
		*p = &v
	}
}

// Validate checks that cfg contains a coherent set of values. It expects
// [ApplyDefaults] to have run and returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}

	// Listen
	l := cfg.Listen
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"listen.wait_timeout", l.WaitTimeout},
		{"listen.phrase_limit", l.PhraseLimit},
		{"listen.pause", l.Pause},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.v))
		}
	}
	if l.Calibration < 0 {
		errs = append(errs, fmt.Errorf("listen.calibration must not be negative, got %s", l.Calibration))
	}
	if l.Pause >= l.PhraseLimit {
		errs = append(errs, fmt.Errorf("listen.pause %s must be shorter than listen.phrase_limit %s", l.Pause, l.PhraseLimit))
	}
	if l.MinThreshold < 0 {
		errs = append(errs, fmt.Errorf("listen.min_threshold %.1f must not be negative", l.MinThreshold))
	}
	if l.DynamicRatio < 1 {
		errs = append(errs, fmt.Errorf("listen.dynamic_ratio %.2f must be at least 1", l.DynamicRatio))
	}
	if !slices.Contains(autoLanguages, strings.ToLower(l.Language)) {
		if _, err := language.Parse(l.Language); err != nil {
			errs = append(errs, fmt.Errorf("listen.language %q is not a BCP-47 tag: %w", l.Language, err))
		}
	}

	// Voice
	if cfg.Voice.SpeedFactor < 0.25 || cfg.Voice.SpeedFactor > 4.0 {
		errs = append(errs, fmt.Errorf("voice.speed_factor %.2f is out of range [0.25, 4.0]", cfg.Voice.SpeedFactor))
	}

	// Confusion
	c := cfg.Confusion
	for _, p := range []struct {
		name string
		v    *float64
	}{
		{"confusion.rewrite_probability", c.RewriteProbability},
		{"confusion.synonym_probability", c.SynonymProbability},
		{"confusion.connector_probability", c.ConnectorProbability},
		{"confusion.shuffle_probability", c.ShuffleProbability},
		{"confusion.malayalam_connector_probability", c.MalayalamConnectorProbability},
		{"confusion.malayalam_swap_probability", c.MalayalamSwapProbability},
	} {
		if p.v != nil && (*p.v < 0 || *p.v > 1) {
			errs = append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", p.name, *p.v))
		}
	}
	errs = append(errs, nonBlank("confusion.english_connectors", c.EnglishConnectors)...)
	errs = append(errs, nonBlank("confusion.malayalam_connectors", c.MalayalamConnectors)...)
	errs = append(errs, nonBlank("confusion.exit_commands", c.ExitCommands)...)

	// Lexicon
	switch cfg.Lexicon.Source {
	case LexiconWordNet:
		if cfg.Lexicon.Path == "" {
			errs = append(errs, errors.New("lexicon.path is required when lexicon.source is wordnet"))
		}
	case LexiconPostgres:
		if cfg.Lexicon.PostgresDSN == "" {
			errs = append(errs, errors.New("lexicon.postgres_dsn is required when lexicon.source is postgres"))
		}
	case LexiconBuiltin:
		slog.Debug("using the builtin lexicon; synonym coverage is limited")
	default:
		errs = append(errs, fmt.Errorf("lexicon.source %q is invalid; valid values: builtin, wordnet, postgres", cfg.Lexicon.Source))
	}

	// Language
	if _, err := language.ParseBase(cfg.Language.Default); err != nil {
		errs = append(errs, fmt.Errorf("language.default %q is not an ISO 639 code: %w", cfg.Language.Default, err))
	}
	for i, code := range cfg.Language.Allow {
		if _, err := language.ParseBase(code); err != nil {
			errs = append(errs, fmt.Errorf("language.allow[%d] %q is not an ISO 639 code: %w", i, code, err))
		}
	}
	if len(cfg.Language.Allow) > 0 && !slices.Contains(cfg.Language.Allow, cfg.Language.Default) {
		slog.Warn("language.default is not in language.allow; it is still used when detection fails",
			"default", cfg.Language.Default,
			"allow", cfg.Language.Allow,
		)
	}
	if cfg.Language.MinConfidence < 0 || cfg.Language.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("language.min_confidence %.2f is out of range [0, 1]", cfg.Language.MinConfidence))
	}

	// Journal
	if cfg.Journal.Path != "" && cfg.Journal.PostgresDSN != "" {
		errs = append(errs, errors.New("journal.path and journal.postgres_dsn are mutually exclusive"))
	}

	// Loop
	if cfg.Loop.ServiceBackoff < 0 {
		errs = append(errs, fmt.Errorf("loop.service_backoff must not be negative, got %s", cfg.Loop.ServiceBackoff))
	}
	if cfg.Loop.ErrorBackoff < 0 {
		errs = append(errs, fmt.Errorf("loop.error_backoff must not be negative, got %s", cfg.Loop.ErrorBackoff))
	}

	return errors.Join(errs...)
}

// nonBlank reports every blank entry of list.
func nonBlank(name string, list []string) []error {
	var errs []error
	for i, s := range list {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("%s[%d] must not be blank", name, i))
		}
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
