package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/provider/stt/browser"
	sttmock "github.com/MrWong99/closepath/pkg/provider/stt/mock"
)

// switchLog records backend switches reported by an STTFallback.
type switchLog struct {
	mu    sync.Mutex
	moves []string
}

func (l *switchLog) hook(from, to string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moves = append(l.moves, from+"->"+to)
}

func (l *switchLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.moves...)
}

func TestSTTFallback_PrimaryServes(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{}
	secondary := &sttmock.Provider{}
	log := &switchLog{}

	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	}, WithSwitchHook(log.hook))
	fb.AddFallback("browser", secondary)

	if fb.Active() != "" {
		t.Fatalf("Active before first session = %q, want empty", fb.Active())
	}
	// A call reopens its session after every silence timeout.
	for range 3 {
		sess, err := fb.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
		if err != nil {
			t.Fatalf("StartStream: %v", err)
		}
		_ = sess.Close()
	}

	if primary.StartCount() != 3 || secondary.StartCount() != 0 {
		t.Errorf("starts: primary=%d secondary=%d, want 3/0", primary.StartCount(), secondary.StartCount())
	}
	if fb.Active() != "deepgram" {
		t.Errorf("Active = %q, want deepgram", fb.Active())
	}
	if got := log.get(); len(got) != 1 || got[0] != "->deepgram" {
		t.Errorf("switches = %v, want only the initial selection", got)
	}
}

func TestSTTFallback_FailsOverToBrowser(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{StartStreamErr: errors.New("deepgram: dial: 401 Unauthorized")}
	log := &switchLog{}

	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	}, WithSwitchHook(log.hook))
	fb.AddFallback("browser", browser.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess, err := fb.StartStream(ctx, stt.StreamConfig{Language: "en-US"})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()

	// The browser session must still accept forwarded recognition events.
	feeder, ok := sess.(stt.EventFeeder)
	if !ok {
		t.Fatalf("session %T does not accept recognition events", sess)
	}
	if err := feeder.Feed(stt.RecognitionEvent{Type: "result", Text: "we use Salesforce", Final: true}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if got := <-sess.Finals(); got.Text != "we use Salesforce" {
		t.Errorf("final = %+v", got)
	}
	if fb.Active() != "browser" {
		t.Errorf("Active = %q, want browser", fb.Active())
	}

	// With the primary's breaker open the next reopen goes straight to the
	// fallback and is not reported as a switch.
	next, err := fb.StartStream(ctx, stt.StreamConfig{})
	if err != nil {
		t.Fatalf("second StartStream: %v", err)
	}
	_ = next.Close()
	if primary.StartCount() != 1 {
		t.Errorf("primary starts = %d, want 1 (breaker open)", primary.StartCount())
	}
	if got := log.get(); len(got) != 1 || got[0] != "->browser" {
		t.Errorf("switches = %v", got)
	}
}

func TestSTTFallback_AllFailKeepsLastError(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{StartStreamErr: errors.New("primary down")}
	secondary := &sttmock.Provider{StartStreamErr: stt.ErrNotAllowed}

	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("browser", secondary)

	_, err := fb.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, stt.ErrNotAllowed) {
		t.Fatalf("err = %v, want last provider error kept", err)
	}
	if fb.Active() != "" {
		t.Errorf("Active = %q, want empty after failure", fb.Active())
	}
}

func TestSTTFallback_CancelledCallDoesNotFailOver(t *testing.T) {
	t.Parallel()
	primary := &sttmock.Provider{StartStreamErr: context.Canceled}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{})
	fb.AddFallback("browser", secondary)

	_, err := fb.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if secondary.StartCount() != 0 {
		t.Errorf("secondary starts = %d, want 0", secondary.StartCount())
	}
}
