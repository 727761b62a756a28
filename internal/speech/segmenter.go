// Package speech turns recognizer output into speaker-attributed utterances.
//
// The [Segmenter] assigns speakers with a silence-gap rule: a pause longer
// than the threshold since the previous final fragment means the other party
// is now talking. The [Adapter] keeps a recognizer session running for the
// length of a call, restarting it after transient stops, and hands every final
// fragment to the call as a [types.Utterance].
package speech

import (
	"fmt"
	"sync"
	"time"
)

// DefaultSilenceThreshold is the pause after which the speaker flips.
const DefaultSilenceThreshold = 2000 * time.Millisecond

// Segmenter attributes final fragments to "Speaker 1" or "Speaker 2".
//
// The zero value is not usable; construct with [NewSegmenter]. Segmenter is
// safe for concurrent use.
type Segmenter struct {
	threshold time.Duration

	mu         sync.Mutex
	lastSpeech time.Time
	speaker    int
}

// NewSegmenter returns a Segmenter whose clock starts at start with speaker 1
// active. A non-positive threshold selects [DefaultSilenceThreshold].
func NewSegmenter(start time.Time, threshold time.Duration) *Segmenter {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return &Segmenter{
		threshold:  threshold,
		lastSpeech: start,
		speaker:    1,
	}
}

// Assign records a final fragment heard at now and returns its speaker label.
// The speaker flips when more than the threshold elapsed since the previous
// fragment; a gap exactly equal to the threshold keeps the current speaker.
func (s *Segmenter) Assign(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSpeech) > s.threshold {
		s.speaker = 3 - s.speaker
	}
	s.lastSpeech = now
	return Label(s.speaker)
}

// Speaker returns the currently active speaker number (1 or 2).
func (s *Segmenter) Speaker() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaker
}

// Label formats a speaker number for the transcript.
func Label(speaker int) string {
	return fmt.Sprintf("Speaker %d", speaker)
}
