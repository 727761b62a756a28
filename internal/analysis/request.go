// Package analysis builds analysis requests from a call transcript and
// obtains scorecards for them, either from a remote analysis endpoint, from
// the in-process analyzer, or from the local keyword heuristic.
package analysis

import (
	"time"

	"github.com/MrWong99/closepath/pkg/types"
)

// Defaults for request building and question filtering.
const (
	DefaultWindow       = 15
	DefaultMaxQuestions = 5
)

// Line is one transcript entry as sent to the analyzer.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Request is the body posted to the analysis endpoint.
type Request struct {
	Transcript []Line    `json:"transcript"`
	CallID     string    `json:"callId"`
	Timestamp  time.Time `json:"timestamp"`
}

// BuildRequest takes the most recent window utterances of transcript (all of
// them when fewer exist). A non-positive window selects [DefaultWindow].
func BuildRequest(callID string, transcript []types.Utterance, now time.Time, window int) Request {
	if window <= 0 {
		window = DefaultWindow
	}
	start := max(len(transcript)-window, 0)
	lines := make([]Line, 0, len(transcript)-start)
	for _, u := range transcript[start:] {
		lines = append(lines, Line{Speaker: u.Speaker, Text: u.Text})
	}
	return Request{
		Transcript: lines,
		CallID:     callID,
		Timestamp:  now.UTC(),
	}
}
