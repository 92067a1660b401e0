package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/pinocchio/internal/config"
)

func ptr[T any](v T) *T { return &v }

func baseConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{STT: config.ProviderEntry{Name: "deepgram"}},
		Voice:     config.VoiceConfig{VoiceID: "v1", SpeedFactor: 0.85},
		Confusion: config.ConfusionConfig{
			RewriteProbability: ptr(0.5),
			ExitCommands:       []string{"exit", "quit"},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("expected empty diff for equal configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.VoiceChanged || d.ConfusionChanged {
		t.Errorf("unexpected changes: %+v", d)
	}
}

func TestDiff_VoiceChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Voice.SpeedFactor = 0.7

	if d := config.Diff(old, new); !d.VoiceChanged {
		t.Error("expected VoiceChanged=true")
	}
}

func TestDiff_ConfusionChanged(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *config.ConfusionConfig)
	}{
		{"probability value", func(c *config.ConfusionConfig) { c.RewriteProbability = ptr(0.9) }},
		{"probability set", func(c *config.ConfusionConfig) { c.ShuffleProbability = ptr(0.3) }},
		{"catch-all", func(c *config.ConfusionConfig) { c.CatchAllCountsAsRewrite = ptr(false) }},
		{"exit commands", func(c *config.ConfusionConfig) { c.ExitCommands = append(c.ExitCommands, "bye") }},
		{"connectors", func(c *config.ConfusionConfig) { c.EnglishConnectors = []string{"alas"} }},
		{"seed", func(c *config.ConfusionConfig) { c.Seed = 7 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := baseConfig()
			new := baseConfig()
			tc.mutate(&new.Confusion)
			if d := config.Diff(old, new); !d.ConfusionChanged {
				t.Error("expected ConfusionChanged=true")
			}
		})
	}
}

func TestDiff_SamePointeeIsUnchanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Confusion.RewriteProbability = ptr(*old.Confusion.RewriteProbability)
	if d := config.Diff(old, new); d.ConfusionChanged {
		t.Error("equal probabilities behind different pointers reported as changed")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.STT.Name = "whisper"
	new.Listen.Language = "ml-IN"
	new.Journal.Path = "/tmp/j.jsonl"

	d := config.Diff(old, new)
	for _, want := range []string{"providers", "listen", "journal"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired = %v, missing %q", d.RestartRequired, want)
		}
	}
	if slices.Contains(d.RestartRequired, "lexicon") {
		t.Errorf("RestartRequired = %v, lexicon did not change", d.RestartRequired)
	}
	if d.Empty() {
		t.Error("diff with restart-only changes must not be empty")
	}
}
