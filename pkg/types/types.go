// Package types defines the shared types used across all ClosePath packages.
//
// These types are the common vocabulary between speech providers, LLM providers,
// the transcript store and the call session. Each package defines its own domain
// types, but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the provider
	// does not report confidence.
	Confidence float64

	// Words contains per-word detail when available (Deepgram).
	// May be nil for providers that don't support word-level output.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Utterance is one unit of speech attributed to a speaker. It is the atomic
// entry of a call transcript and is never modified after it is appended.
type Utterance struct {
	// Speaker is the label of whoever produced the utterance ("Speaker 1",
	// "rep", "prospect", ...).
	Speaker string `json:"speaker"`

	// Text is the (possibly glossary-corrected) utterance text.
	Text string `json:"text"`

	// RawText is the original recognizer output before correction. Empty when
	// no correction was applied.
	RawText string `json:"raw_text,omitempty"`

	// Timestamp is the offset from call start at which the utterance was recorded.
	Timestamp time.Duration `json:"timestamp"`
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSONMode indicates the model can be asked for a JSON-only reply.
	SupportsJSONMode bool
}

// KeywordBoost represents a keyword to boost in STT recognition.
// Used to improve recognition of product names, competitors and sales jargon.
type KeywordBoost struct {
	// Keyword is the text to boost (e.g., "MEDDPICC").
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
