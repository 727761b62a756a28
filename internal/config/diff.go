package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GlossaryChanged is true when the glossary terms differ. New terms
	// apply to calls started after the reload.
	GlossaryChanged bool
	AddedTerms      []string
	RemovedTerms    []string

	// RestartRequired lists the top-level sections whose changes are only
	// picked up after a restart.
	RestartRequired []string
}

// Changed reports whether d carries any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.GlossaryChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Glossary
	for _, t := range new.Glossary.Terms {
		if !slices.Contains(old.Glossary.Terms, t) {
			d.AddedTerms = append(d.AddedTerms, t)
		}
	}
	for _, t := range old.Glossary.Terms {
		if !slices.Contains(new.Glossary.Terms, t) {
			d.RemovedTerms = append(d.RemovedTerms, t)
		}
	}
	d.GlossaryChanged = len(d.AddedTerms) > 0 || len(d.RemovedTerms) > 0

	// Sections read once at startup.
	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !analysisEqual(old.Analysis, new.Analysis) {
		d.RestartRequired = append(d.RestartRequired, "analysis")
	}
	if old.Speech != new.Speech {
		d.RestartRequired = append(d.RestartRequired, "speech")
	}
	if old.Demo != new.Demo {
		d.RestartRequired = append(d.RestartRequired, "demo")
	}
	if old.Events.Enabled != new.Events.Enabled || old.Events.Topic != new.Events.Topic ||
		!slices.Equal(old.Events.Brokers, new.Events.Brokers) {
		d.RestartRequired = append(d.RestartRequired, "events")
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.LLM, b.LLM) && entryEqual(a.STT, b.STT) &&
		slices.EqualFunc(a.LLMFallbacks, b.LLMFallbacks, entryEqual) &&
		slices.EqualFunc(a.STTFallbacks, b.STTFallbacks, entryEqual)
}

// entryEqual ignores Options; changing only provider options is rare enough
// to leave unreported.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}

func analysisEqual(a, b AnalysisConfig) bool {
	return a.Endpoint == b.Endpoint && a.Window == b.Window && a.MaxQuestions == b.MaxQuestions &&
		a.MaxTokens == b.MaxTokens && a.Timeout == b.Timeout &&
		a.Trigger.Policy == b.Trigger.Policy && a.Trigger.Cadence == b.Trigger.Cadence &&
		slices.Equal(a.Trigger.Keywords, b.Trigger.Keywords)
}
