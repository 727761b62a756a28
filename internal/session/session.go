// Package session runs sales calls. Each [Call] owns its transcript, asked
// questions and scorecard, and mutates them from a single event-loop
// goroutine fed by the speech adapter, the demo feed, analysis completions
// and API requests. The [Manager] creates, looks up and ends calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/types"
)

// Mode selects where a call's transcript comes from.
type Mode string

const (
	// ModeLive transcribes real speech through the configured STT provider.
	ModeLive Mode = "live"
	// ModeDemo replays the scripted demo conversation.
	ModeDemo Mode = "demo"
)

// ParseMode validates a mode name. An empty name selects [ModeLive].
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeLive:
		return ModeLive, nil
	case ModeDemo:
		return ModeDemo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

var (
	// ErrCallNotFound is returned for unknown call ids.
	ErrCallNotFound = errors.New("session: call not found")
	// ErrCallEnded is returned when a call that has ended is asked to change.
	ErrCallEnded = errors.New("session: call ended")
	// ErrInvalidMode is returned by [ParseMode] for unknown modes.
	ErrInvalidMode = errors.New("session: invalid mode")
	// ErrNotLive is returned when audio or recognition events are pushed to a
	// demo call.
	ErrNotLive = errors.New("session: call is not in live mode")
	// ErrShutdown is returned by [Manager.Start] after [Manager.Shutdown].
	ErrShutdown = errors.New("session: manager shut down")
	// ErrEmptyText is returned for blank utterances and questions.
	ErrEmptyText = errors.New("session: empty text")
)

// User-facing error messages shown inline on the scorecard.
const (
	msgAnalysisFailed     = "Analysis failed - check API setup"
	msgAnalysisUnreadable = "Analysis reply could not be read - retrying on the next utterance"
	msgSpeechUnavailable  = "Speech recognition is not available. Switch to demo mode."
	msgMicDenied          = "Microphone access denied."
	msgSpeechFailed       = "Speech recognition stopped: %v"
)

// Snapshot is a point-in-time copy of a call's state. It shares nothing with
// the call and may be retained freely.
type Snapshot struct {
	CallID     string             `json:"callId"`
	Mode       Mode               `json:"mode"`
	StartedAt  time.Time          `json:"startedAt"`
	EndedAt    *time.Time         `json:"endedAt,omitempty"`
	Ended      bool               `json:"ended"`
	Listening  bool               `json:"listening"`
	Analyzing  bool               `json:"analyzing"`
	Transcript []types.Utterance  `json:"transcript"`
	Scorecard  *meddpicc.Analysis `json:"scorecard,omitempty"`
	Asked      []string           `json:"askedQuestions"`
	Error      string             `json:"error,omitempty"`
	Seq        uint64             `json:"seq"`
	AppliedSeq uint64             `json:"appliedSeq"`
}

// Observer is notified of call activity. Methods are invoked from the call's
// event loop and must not block.
type Observer interface {
	UtteranceAppended(ctx context.Context, callID string, u types.Utterance)
	ScorecardUpdated(ctx context.Context, s Snapshot)
	CallEnded(ctx context.Context, s Snapshot)
}
