package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"anthropic", "openai", "gemini", "ollama", "mistral", "deepseek", "groq", "llamacpp"},
	"stt": {"deepgram", "browser"},
}

// credentialEnv maps provider names to the environment variable consulted
// when the YAML leaves api_key empty.
var credentialEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"deepgram":  "DEEPGRAM_API_KEY",
}

// Load reads the YAML configuration file at path, fills empty credentials
// from the process environment and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is [Load] with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := parse(f, getenv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates it. The
// environment is not consulted. An empty document is a valid config that runs
// the server in demo mode.
func LoadFromReader(r io.Reader) (*Config, error) {
	return parse(r, nil)
}

// Defaults returns the config used when no file exists: empty apart from
// what getenv supplies.
func Defaults(getenv func(string) string) (*Config, error) {
	return parse(strings.NewReader(""), getenv)
}

// parse decodes r, applies getenv when non-nil and validates.
func parse(r io.Reader, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if getenv != nil {
		ApplyEnv(cfg, getenv)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills empty provider API keys from well-known environment
// variables. Without a configured LLM, a set ANTHROPIC_API_KEY selects the
// anthropic provider.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg.Providers.LLM.Name == "" && getenv("ANTHROPIC_API_KEY") != "" {
		cfg.Providers.LLM.Name = "anthropic"
		slog.Info("config: using anthropic from ANTHROPIC_API_KEY")
	}
	fill := func(e *ProviderEntry) {
		if e.APIKey != "" || e.Name == "" {
			return
		}
		if key, ok := credentialEnv[e.Name]; ok {
			e.APIKey = getenv(key)
		}
	}
	fill(&cfg.Providers.LLM)
	for i := range cfg.Providers.LLMFallbacks {
		fill(&cfg.Providers.LLMFallbacks[i])
	}
	fill(&cfg.Providers.STT)
	for i := range cfg.Providers.STTFallbacks {
		fill(&cfg.Providers.STTFallbacks[i])
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if cfg.Providers.LLM.Name == "" && cfg.Analysis.Endpoint == "" {
		slog.Warn("no LLM provider configured; analyses return the demo scorecard")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; live calls only accept pushed utterances")
	}

	// Analysis
	a := cfg.Analysis
	if a.Endpoint != "" {
		u, err := url.Parse(a.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("analysis.endpoint %q must be an absolute http(s) URL", a.Endpoint))
		}
	}
	if a.Window < 0 {
		errs = append(errs, fmt.Errorf("analysis.window %d must not be negative", a.Window))
	}
	if a.MaxQuestions < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_questions %d must not be negative", a.MaxQuestions))
	}
	if a.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_tokens %d must not be negative", a.MaxTokens))
	}
	if a.Timeout < 0 {
		errs = append(errs, fmt.Errorf("analysis.timeout %s must not be negative", a.Timeout))
	}
	if a.Trigger.Policy != "" && !a.Trigger.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("analysis.trigger.policy %q is invalid; valid values: keyword, cadence", a.Trigger.Policy))
	}
	if a.Trigger.Cadence < 0 {
		errs = append(errs, fmt.Errorf("analysis.trigger.cadence %d must not be negative", a.Trigger.Cadence))
	}

	// Speech and demo
	if cfg.Speech.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("speech.silence_threshold %s must not be negative", cfg.Speech.SilenceThreshold))
	}
	if cfg.Speech.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("speech.restart_delay %s must not be negative", cfg.Speech.RestartDelay))
	}
	if cfg.Speech.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("speech.sample_rate %d must not be negative", cfg.Speech.SampleRate))
	}
	if cfg.Demo.Interval < 0 {
		errs = append(errs, fmt.Errorf("demo.interval %s must not be negative", cfg.Demo.Interval))
	}

	// Glossary duplicate detection
	seen := make(map[string]int, len(cfg.Glossary.Terms))
	for i, term := range cfg.Glossary.Terms {
		if term == "" {
			errs = append(errs, fmt.Errorf("glossary.terms[%d] is empty", i))
			continue
		}
		if prev, ok := seen[term]; ok {
			errs = append(errs, fmt.Errorf("glossary.terms[%d] %q is a duplicate of glossary.terms[%d]", i, term, prev))
		}
		seen[term] = i
	}

	// Events
	if cfg.Events.Enabled && len(cfg.Events.Brokers) == 0 {
		errs = append(errs, errors.New("events.brokers is required when events.enabled is true"))
	}

	return errors.Join(errs...)
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
