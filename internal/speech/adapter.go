package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/types"
)

// DefaultRestartDelay is the pause before reopening a recognizer session that
// stopped on its own or reported no speech.
const DefaultRestartDelay = 100 * time.Millisecond

var (
	// ErrCapabilityMissing is returned by [Adapter.Run] when no speech
	// recognition provider is configured.
	ErrCapabilityMissing = errors.New("speech: speech recognition not available")

	// ErrPermissionDenied means microphone access was refused. It is fatal.
	ErrPermissionDenied = errors.New("speech: microphone permission denied")

	// ErrRecognition wraps any other recognizer failure. It is fatal.
	ErrRecognition = errors.New("speech: recognition failed")

	// ErrNotListening is returned when audio or events arrive while no
	// recognizer session is open.
	ErrNotListening = errors.New("speech: not listening")
)

// AdapterOption configures an [Adapter].
type AdapterOption func(*Adapter)

// WithRestartDelay overrides [DefaultRestartDelay].
func WithRestartDelay(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.restartDelay = d }
}

// WithStreamConfig sets the configuration passed to every StartStream call.
func WithStreamConfig(cfg stt.StreamConfig) AdapterOption {
	return func(a *Adapter) { a.streamCfg = cfg }
}

// WithClock replaces time.Now. Used by tests to drive the segmenter.
func WithClock(now func() time.Time) AdapterOption {
	return func(a *Adapter) { a.now = now }
}

// WithTextFilter sets a function applied to every final fragment before it is
// handed on. It returns the text to store and the original when they differ.
func WithTextFilter(fn func(string) (text, raw string)) AdapterOption {
	return func(a *Adapter) { a.filter = fn }
}

// Adapter keeps one recognizer session open while a call is active and
// delivers speaker-attributed final fragments to onFinal. Partials are drained
// and never reach the transcript.
//
// Adapter is safe for concurrent use; [Adapter.Run] must be called at most once.
type Adapter struct {
	provider     stt.Provider
	seg          *Segmenter
	onFinal      func(types.Utterance)
	streamCfg    stt.StreamConfig
	restartDelay time.Duration
	now          func() time.Time
	filter       func(string) (string, string)
	start        time.Time

	mu      sync.Mutex
	current stt.SessionHandle
}

// NewAdapter returns an Adapter that reads from provider (which may be nil,
// see [ErrCapabilityMissing]) and attributes speakers with seg. start is the
// call start used for utterance timestamps.
func NewAdapter(provider stt.Provider, seg *Segmenter, start time.Time, onFinal func(types.Utterance), opts ...AdapterOption) *Adapter {
	a := &Adapter{
		provider:     provider,
		seg:          seg,
		onFinal:      onFinal,
		restartDelay: DefaultRestartDelay,
		now:          time.Now,
		start:        start,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run listens until ctx is cancelled or a fatal error occurs. It returns nil
// after cancellation, [ErrCapabilityMissing] when there is no provider, and an
// error wrapping [ErrPermissionDenied] or [ErrRecognition] otherwise.
//
// A recognizer that stops on its own or reports no speech is reopened after
// the restart delay without surfacing anything.
func (a *Adapter) Run(ctx context.Context) error {
	if a.provider == nil {
		return ErrCapabilityMissing
	}
	for {
		sess, err := a.provider.StartStream(ctx, a.streamCfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return classify(err)
		}
		a.setSession(sess)
		err = a.consume(ctx, sess)
		a.setSession(nil)
		if cerr := sess.Close(); cerr != nil {
			slog.Debug("speech: session close failed", "err", cerr)
		}
		if ctx.Err() == nil {
			a.drainFinals(sess.Finals())
		}

		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			slog.Debug("speech: recognizer ended, restarting")
		case errors.Is(err, stt.ErrNoSpeech):
			slog.Debug("speech: no speech, restarting")
		default:
			return classify(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.restartDelay):
		}
	}
}

// consume pumps one session until it ends (nil), reports an error, or ctx is
// cancelled.
func (a *Adapter) consume(ctx context.Context, sess stt.SessionHandle) error {
	partials, finals, errs := sess.Partials(), sess.Finals(), sess.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-partials:
			if !ok {
				partials = nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return err
		case tr, ok := <-finals:
			if !ok {
				return nil
			}
			a.deliver(tr)
		}
	}
}

// drainFinals delivers finals still buffered when a session stops. A final
// accepted just before an error must not be lost with the session. It never
// blocks: closed sessions yield their buffer and then report closed.
func (a *Adapter) drainFinals(finals <-chan types.Transcript) {
	for {
		select {
		case tr, ok := <-finals:
			if !ok {
				return
			}
			a.deliver(tr)
		default:
			return
		}
	}
}

func (a *Adapter) deliver(tr types.Transcript) {
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return
	}
	now := a.now()
	u := types.Utterance{
		Speaker:   a.seg.Assign(now),
		Text:      text,
		Timestamp: now.Sub(a.start),
	}
	if a.filter != nil {
		u.Text, u.RawText = a.filter(text)
	}
	if a.onFinal != nil {
		a.onFinal(u)
	}
}

// SendAudio forwards a raw audio chunk to the open session.
func (a *Adapter) SendAudio(chunk []byte) error {
	sess := a.session()
	if sess == nil {
		return ErrNotListening
	}
	return sess.SendAudio(chunk)
}

// Feed forwards a client-side recognition event to the open session. Sessions
// that do not accept events return [stt.ErrNotSupported].
func (a *Adapter) Feed(ev stt.RecognitionEvent) error {
	sess := a.session()
	if sess == nil {
		return ErrNotListening
	}
	feeder, ok := sess.(stt.EventFeeder)
	if !ok {
		return stt.ErrNotSupported
	}
	return feeder.Feed(ev)
}

// Listening reports whether a recognizer session is currently open.
func (a *Adapter) Listening() bool {
	return a.session() != nil
}

func (a *Adapter) session() stt.SessionHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *Adapter) setSession(s stt.SessionHandle) {
	a.mu.Lock()
	a.current = s
	a.mu.Unlock()
}

func classify(err error) error {
	if errors.Is(err, stt.ErrNotAllowed) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrRecognition, err)
}
