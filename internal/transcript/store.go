package transcript

import (
	"sync"

	"github.com/MrWong99/closepath/pkg/types"
)

// Store is the ordered, append-only transcript of one call. Arrival order is
// conversational order. Reads return copies, so callers may keep them across
// later appends.
//
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []types.Utterance
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds u at the end of the transcript and returns the new length.
func (s *Store) Append(u types.Utterance) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, u)
	return len(s.entries)
}

// Len returns the number of stored utterances.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the whole transcript.
func (s *Store) Snapshot() []types.Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Utterance{}, s.entries...)
}

// Window returns a copy of the most recent n utterances, or all of them when
// fewer than n are stored. n <= 0 returns an empty slice.
func (s *Store) Window(n int) []types.Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return []types.Utterance{}
	}
	start := max(len(s.entries)-n, 0)
	return append([]types.Utterance{}, s.entries[start:]...)
}

// Reset discards every utterance.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}
