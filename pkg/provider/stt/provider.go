// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription facility (the host browser's
// speech recognition relayed by the web client, or a streaming service such as
// Deepgram) and exposes a uniform streaming interface. The central abstraction
// is SessionHandle: once opened, a session accepts raw audio or client-side
// recognition events and emits low-latency partials, authoritative finals and
// recognition errors.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/closepath/pkg/types"
)

// Recognition error classes. Providers wrap or return these so that callers
// can decide between a silent restart and stopping the listener.
var (
	// ErrNoSpeech is transient: the recognizer heard nothing for a while.
	ErrNoSpeech = errors.New("stt: no speech detected")

	// ErrNotAllowed means microphone access was refused by the user or host.
	ErrNotAllowed = errors.New("stt: microphone access denied")

	// ErrNotSupported is returned for operations a provider cannot perform,
	// such as mid-session keyword updates or raw audio on a client-side recognizer.
	ErrNotSupported = errors.New("stt: operation not supported")

	// ErrClosed is returned when using a session after Close.
	ErrClosed = errors.New("stt: session is closed")
)

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Ignored by client-side recognizers.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider pick its default.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition probability
	// for uncommon words such as product and competitor names.
	Keywords []types.KeywordBoost
}

// RecognitionEvent is a recognition result or error produced by a recognizer
// that runs on the client, forwarded verbatim over the call websocket.
type RecognitionEvent struct {
	// Type is "result", "error" or "end".
	Type string `json:"type"`

	// Text is the recognized text for "result" events.
	Text string `json:"text,omitempty"`

	// Final marks an authoritative result.
	Final bool `json:"final,omitempty"`

	// Confidence is the recognizer's confidence, 0 when unknown.
	Confidence float64 `json:"confidence,omitempty"`

	// Error is the recognizer error code for "error" events ("no-speech",
	// "not-allowed", "network", ...).
	Error string `json:"error,omitempty"`
}

// ErrorFromCode maps a recognizer error code to an error. "no-speech" maps to
// ErrNoSpeech, "not-allowed" and "service-not-allowed" to ErrNotAllowed;
// anything else is a generic recognition error.
func ErrorFromCode(code string) error {
	switch code {
	case "no-speech":
		return ErrNoSpeech
	case "not-allowed", "service-not-allowed":
		return ErrNotAllowed
	default:
		return fmt.Errorf("stt: recognition error: %s", code)
	}
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider.
	// Client-side recognizers return ErrNotSupported. Calling SendAudio after
	// Close returns ErrClosed.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of interim Transcript values. These
	// must not be written to the call transcript. The channel is closed when the
	// session ends.
	Partials() <-chan types.Transcript

	// Finals returns a read-only channel of authoritative Transcript values.
	// The channel is closed when the session ends, which is how callers detect
	// that the recognizer stopped.
	Finals() <-chan types.Transcript

	// Errors returns a read-only channel of recognition errors. The channel is
	// closed when the session ends.
	Errors() <-chan error

	// SetKeywords replaces the active keyword boost list without restarting the
	// session. Providers that cannot do this return ErrNotSupported.
	SetKeywords(keywords []types.KeywordBoost) error

	// Close terminates the session and releases all associated resources.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// EventFeeder is implemented by sessions whose recognition runs on the client.
// The transport layer hands each forwarded RecognitionEvent to Feed.
type EventFeeder interface {
	Feed(ev RecognitionEvent) error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be open
// simultaneously (one per active call).
type Provider interface {
	// StartStream opens a new streaming transcription session. The caller owns
	// the SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
