// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Transcript values and errors and
// to inspect which audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Sessions: []*mock.Session{sess}}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.FinalsCh <- types.Transcript{Text: "hello", IsFinal: true}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Sessions are handed out in order, one per StartStream call. When the list
	// is exhausted a fresh Session is created. Every session returned is also
	// appended to Started.
	Sessions []*Session

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// Started lists every session returned so far.
	Started []*Session

	// OnStart, if set, is called with every session returned.
	OnStart func(*Session)
}

// StartStream records the call and returns the next session or StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		err := p.StartStreamErr
		p.mu.Unlock()
		return nil, err
	}
	var s *Session
	if len(p.Sessions) > 0 {
		s, p.Sessions = p.Sessions[0], p.Sessions[1:]
	} else {
		s = NewSession()
	}
	p.Started = append(p.Started, s)
	onStart := p.OnStart
	p.mu.Unlock()

	if onStart != nil {
		onStart(s)
	}
	return s, nil
}

// StartCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Session is a mock implementation of stt.SessionHandle and stt.EventFeeder.
// Tests push values into PartialsCh, FinalsCh and ErrorsCh directly; Close
// closes all three unless they were already closed via End.
type Session struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials().
	PartialsCh chan types.Transcript

	// FinalsCh is the channel returned by Finals().
	FinalsCh chan types.Transcript

	// ErrorsCh is the channel returned by Errors().
	ErrorsCh chan error

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// --- Call records ---

	// AudioChunks records a copy of every chunk passed to SendAudio.
	AudioChunks [][]byte

	// Fed records every event passed to Feed.
	Fed []stt.RecognitionEvent

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	ended bool
}

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan types.Transcript, 16),
		FinalsCh:   make(chan types.Transcript, 16),
		ErrorsCh:   make(chan error, 4),
	}
}

// SendAudio records the chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.AudioChunks = append(s.AudioChunks, cp)
	return s.SendAudioErr
}

// Feed records the event.
func (s *Session) Feed(ev stt.RecognitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fed = append(s.Fed, ev)
	return nil
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan types.Transcript { return s.PartialsCh }

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan types.Transcript { return s.FinalsCh }

// Errors returns ErrorsCh.
func (s *Session) Errors() <-chan error { return s.ErrorsCh }

// SetKeywords always reports stt.ErrNotSupported.
func (s *Session) SetKeywords([]types.KeywordBoost) error {
	return stt.ErrNotSupported
}

// End simulates the recognizer stopping on its own by closing all channels.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *Session) endLocked() {
	if s.ended {
		return
	}
	s.ended = true
	close(s.PartialsCh)
	close(s.FinalsCh)
	close(s.ErrorsCh)
}

// Close records the call and ends the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.endLocked()
	return nil
}

// Closed reports how many times Close was called. Thread-safe.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// FedEvents returns a copy of the fed events. Thread-safe.
func (s *Session) FedEvents() []stt.RecognitionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stt.RecognitionEvent, len(s.Fed))
	copy(out, s.Fed)
	return out
}

var (
	_ stt.SessionHandle = (*Session)(nil)
	_ stt.EventFeeder   = (*Session)(nil)
)
