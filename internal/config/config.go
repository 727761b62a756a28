// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the ClosePath server.
package config

import "time"

// LogLevel controls log verbosity for the ClosePath server.
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

// TriggerPolicy selects when a growing transcript is re-analysed.
type TriggerPolicy string

const (
	// TriggerKeyword analyses on qualification keywords and every few utterances.
	TriggerKeyword TriggerPolicy = "keyword"

	// TriggerCadence analyses every N-th utterance.
	TriggerCadence TriggerPolicy = "cadence"
)

// IsValid reports whether p is a recognised trigger policy.
func (p TriggerPolicy) IsValid() bool {
	return p == TriggerKeyword || p == TriggerCadence
}

// Config is the root configuration structure for ClosePath.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Speech    SpeechConfig    `yaml:"speech"`
	Demo      DemoConfig      `yaml:"demo"`
	Glossary  GlossaryConfig  `yaml:"glossary"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds network and logging settings for the ClosePath server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins lists extra host patterns allowed to open call
	// websockets from a browser (e.g., "app.example.com", "*.example.com").
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation backs each stage.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// LLM scores transcripts. When unset the server answers every analysis
	// with the fixed demo scorecard.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary LLM fails or its
	// circuit breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// STT transcribes live calls. "browser" accepts recognition results
	// pushed by the client over the call websocket.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when the primary STT cannot open a
	// session, e.g. deepgram with browser recognition behind it.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "anthropic", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AnalysisConfig tunes how calls request scorecards.
type AnalysisConfig struct {
	// Endpoint is the URL of a remote /api/analyze. Empty analyses in process.
	Endpoint string `yaml:"endpoint"`

	// Window is the number of most recent utterances sent per request. Default: 15.
	Window int `yaml:"window"`

	// MaxQuestions caps the suggested questions shown per call. Default: 5.
	MaxQuestions int `yaml:"max_questions"`

	// MaxTokens caps the model's reply length. Default: 2000.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds one request to Endpoint. Zero keeps the client default.
	Timeout time.Duration `yaml:"timeout"`

	Trigger TriggerConfig `yaml:"trigger"`
}

// TriggerConfig selects and tunes the analysis trigger.
type TriggerConfig struct {
	// Policy is "keyword" (default) or "cadence".
	Policy TriggerPolicy `yaml:"policy"`

	// Keywords override the built-in qualification cues of the keyword policy.
	Keywords []string `yaml:"keywords"`

	// Cadence is the utterance interval of either policy.
	Cadence int `yaml:"cadence"`
}

// SpeechConfig tunes live transcription.
type SpeechConfig struct {
	// SilenceThreshold is the pause after which the next final utterance is
	// attributed to the other speaker. Default: 2s.
	SilenceThreshold time.Duration `yaml:"silence_threshold"`

	// RestartDelay is the pause before a recognizer that ended by itself is
	// restarted. Default: 100ms.
	RestartDelay time.Duration `yaml:"restart_delay"`

	// Language is the BCP-47 recognition language. Default: "en-US".
	Language string `yaml:"language"`

	// SampleRate is the sample rate of audio pushed over the websocket. Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// DemoConfig tunes the scripted demo call.
type DemoConfig struct {
	// Interval between scripted lines. Default: 4s.
	Interval time.Duration `yaml:"interval"`
}

// GlossaryConfig lists the terms live transcripts are corrected towards.
type GlossaryConfig struct {
	// Terms are product, competitor and methodology names ("Salesforce",
	// "MEDDPICC", ...). Changes apply to calls started after a reload.
	Terms []string `yaml:"terms"`
}

// EventsConfig configures the Kafka call event stream.
type EventsConfig struct {
	// Enabled turns on publishing. When false events are only logged.
	Enabled bool `yaml:"enabled"`

	// Brokers lists the Kafka bootstrap addresses.
	Brokers []string `yaml:"brokers"`

	// Topic receives all call events. Default: "closepath.calls".
	Topic string `yaml:"topic"`
}
