package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Only the log level,
// the voice and the confusion settings are applied without a restart; every
// other section is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	VoiceChanged     bool
	ConfusionChanged bool

	// RestartRequired lists top-level sections whose changes only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VoiceChanged && !d.ConfusionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.VoiceChanged = old.Voice != new.Voice
	d.ConfusionChanged = !confusionEqual(old.Confusion, new.Confusion)

	sections := []struct {
		name     string
		old, new any
	}{
		{"server.listen_addr", old.Server.ListenAddr, new.Server.ListenAddr},
		{"providers", old.Providers, new.Providers},
		{"listen", old.Listen, new.Listen},
		{"lexicon", old.Lexicon, new.Lexicon},
		{"language", old.Language, new.Language},
		{"journal", old.Journal, new.Journal},
		{"loop", old.Loop, new.Loop},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

// confusionEqual compares by value; probabilities are pointers.
func confusionEqual(a, b ConfusionConfig) bool {
	return floatEqual(a.RewriteProbability, b.RewriteProbability) &&
		floatEqual(a.SynonymProbability, b.SynonymProbability) &&
		floatEqual(a.ConnectorProbability, b.ConnectorProbability) &&
		floatEqual(a.ShuffleProbability, b.ShuffleProbability) &&
		floatEqual(a.MalayalamConnectorProbability, b.MalayalamConnectorProbability) &&
		floatEqual(a.MalayalamSwapProbability, b.MalayalamSwapProbability) &&
		boolEqual(a.CatchAllCountsAsRewrite, b.CatchAllCountsAsRewrite) &&
		slices.Equal(a.EnglishConnectors, b.EnglishConnectors) &&
		slices.Equal(a.MalayalamConnectors, b.MalayalamConnectors) &&
		slices.Equal(a.ExitCommands, b.ExitCommands) &&
		a.Seed == b.Seed
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
