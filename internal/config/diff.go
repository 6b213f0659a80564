package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. The log level,
// passage files and scoring are applied live; other sections only take
// effect after a restart and are listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PassagesChanged is true when the passage file list differs. Edits
	// inside an unchanged list are picked up because a reload re-reads the
	// files anyway.
	PassagesChanged bool

	ScoringChanged bool

	RestartRequired []string
}

// restartSections are compared in order; the name is what ends up in
// RestartRequired.
var restartSections = []struct {
	name  string
	equal func(a, b *Config) bool
}{
	{"server", func(a, b *Config) bool {
		return a.Server.ListenAddr == b.Server.ListenAddr && a.Server.ShutdownTimeout == b.Server.ShutdownTimeout
	}},
	{"providers", func(a, b *Config) bool {
		return slices.EqualFunc(a.Providers.all(), b.Providers.all(), entryEqual)
	}},
	{"storage", func(a, b *Config) bool { return a.Storage == b.Storage }},
	{"transcription", func(a, b *Config) bool { return a.Transcription == b.Transcription }},
	{"telemetry", func(a, b *Config) bool {
		return a.Telemetry.ServiceName == b.Telemetry.ServiceName &&
			a.Telemetry.SampleRatio() == b.Telemetry.SampleRatio()
	}},
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{
		LogLevelChanged: old.Server.LogLevel != new.Server.LogLevel,
		PassagesChanged: !slices.Equal(old.Passages.Files, new.Passages.Files),
		ScoringChanged:  old.Scoring != new.Scoring,
	}
	if d.LogLevelChanged {
		d.NewLogLevel = new.Server.LogLevel
	}
	for _, s := range restartSections {
		if !s.equal(old, new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

// Changed reports whether d carries any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PassagesChanged || d.ScoringChanged
}

// all returns the primary followed by the fallbacks.
func (p ProvidersConfig) all() []ProviderEntry {
	return append([]ProviderEntry{p.STT}, p.STTFallbacks...)
}

func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && reflect.DeepEqual(a.Options, b.Options)
}
