// Package browser provides an STT provider for recognition that runs in the
// web client. The client uses the host browser's continuous speech recognition
// and forwards each result or error over the call websocket; the session turns
// those events into transcripts and recognition errors.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/types"
)

// Provider implements stt.Provider for client-side recognition.
type Provider struct{}

// New returns a browser recognition provider.
func New() *Provider { return &Provider{} }

// StartStream opens a session that waits for forwarded events. Audio format
// and keyword hints are handled by the client and ignored here.
func (p *Provider) StartStream(ctx context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser: start stream: %w", err)
	}
	s := &Session{
		partials: make(chan types.Transcript, 16),
		finals:   make(chan types.Transcript, 16),
		errs:     make(chan error, 4),
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

// Session is an open client-side recognition session. It implements
// stt.SessionHandle and stt.EventFeeder.
type Session struct {
	mu       sync.Mutex
	closed   bool
	partials chan types.Transcript
	finals   chan types.Transcript
	errs     chan error
}

// Feed delivers one forwarded recognition event. "result" events become
// partials or finals, "error" events are mapped with stt.ErrorFromCode and
// "end" closes the session the way the browser recognizer's end event does.
func (s *Session) Feed(ev stt.RecognitionEvent) error {
	switch ev.Type {
	case "result":
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return nil
		}
		t := types.Transcript{Text: text, IsFinal: ev.Final, Confidence: ev.Confidence}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return fmt.Errorf("browser: %w", stt.ErrClosed)
		}
		out := s.partials
		if ev.Final {
			out = s.finals
		}
		select {
		case out <- t:
		default:
			if ev.Final {
				return fmt.Errorf("browser: final result dropped, consumer is not keeping up")
			}
		}
		return nil
	case "error":
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return fmt.Errorf("browser: %w", stt.ErrClosed)
		}
		select {
		case s.errs <- stt.ErrorFromCode(ev.Error):
		default:
		}
		return nil
	case "end":
		return s.Close()
	default:
		return fmt.Errorf("browser: unknown event type %q", ev.Type)
	}
}

// SendAudio is not supported: the browser only forwards recognized text.
func (s *Session) SendAudio([]byte) error {
	return fmt.Errorf("browser: send audio: %w", stt.ErrNotSupported)
}

// Partials returns the channel of interim transcripts.
func (s *Session) Partials() <-chan types.Transcript { return s.partials }

// Finals returns the channel of final transcripts.
func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// Errors returns the channel of recognition errors.
func (s *Session) Errors() <-chan error { return s.errs }

// SetKeywords is not supported; the web client owns its grammar hints.
func (s *Session) SetKeywords([]types.KeywordBoost) error {
	return fmt.Errorf("browser: keyword update: %w", stt.ErrNotSupported)
}

// Close ends the session and closes all output channels. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.partials)
	close(s.finals)
	close(s.errs)
	return nil
}

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
	_ stt.EventFeeder   = (*Session)(nil)
)
