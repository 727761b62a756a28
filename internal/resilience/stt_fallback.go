package resilience

import (
	"context"
	"sync"

	"github.com/MrWong99/closepath/pkg/provider/stt"
)

// namedSTT keeps the configured name next to the provider so a successful
// start can report which backend is serving the call.
type namedSTT struct {
	name     string
	provider stt.Provider
}

// STTOption configures an [STTFallback].
type STTOption func(*STTFallback)

// WithSwitchHook sets a function called whenever a session opens on a
// different backend than the previous one. from is empty for the first
// session.
func WithSwitchHook(fn func(from, to string)) STTOption {
	return func(f *STTFallback) { f.onSwitch = fn }
}

// STTFallback implements [stt.Provider] for live calls. Every recognizer
// session, including the reopen after a silence timeout, starts on the first
// backend whose circuit breaker admits it. A call whose primary recognizer
// stops accepting connections therefore keeps transcribing on the next
// configured backend, e.g. deepgram falling back to browser recognition.
//
// Failures after a session is open are reported on the session and do not
// trip the breaker.
type STTFallback struct {
	group    *FallbackGroup[namedSTT]
	onSwitch func(from, to string)

	mu     sync.Mutex
	active string
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig, opts ...STTOption) *STTFallback {
	f := &STTFallback{
		group: NewFallbackGroup(namedSTT{name: primaryName, provider: primary}, primaryName, cfg),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback registers a backend tried after the primary and any fallbacks
// added before it.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, namedSTT{name: name, provider: provider})
}

// StartStream opens a session on the first healthy backend. When every
// backend refuses, the error wraps [ErrAllFailed] and the last backend's
// error, so a denied microphone on the final backend still matches
// [stt.ErrNotAllowed].
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	var served string
	sess, err := ExecuteWithResult(f.group, func(n namedSTT) (stt.SessionHandle, error) {
		s, err := n.provider.StartStream(ctx, cfg)
		if err == nil {
			served = n.name
		}
		return s, err
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	prev := f.active
	f.active = served
	f.mu.Unlock()
	if prev != served && f.onSwitch != nil {
		f.onSwitch(prev, served)
	}
	return sess, nil
}

// Active returns the name of the backend that opened the most recent session,
// or "" before the first one.
func (f *STTFallback) Active() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
