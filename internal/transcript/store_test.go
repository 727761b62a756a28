package transcript

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MrWong99/closepath/pkg/types"
)

func utt(i int) types.Utterance {
	return types.Utterance{Speaker: "Speaker 1", Text: fmt.Sprintf("line %d", i)}
}

func TestStore_AppendReturnsLength(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for i := 1; i <= 3; i++ {
		if n := s.Append(utt(i)); n != i {
			t.Fatalf("Append #%d returned %d", i, n)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestStore_Window(t *testing.T) {
	t.Parallel()

	s := NewStore()
	for i := 1; i <= 20; i++ {
		s.Append(utt(i))
	}

	tests := []struct {
		name      string
		n         int
		wantLen   int
		wantFirst string
	}{
		{"last fifteen", 15, 15, "line 6"},
		{"more than stored", 50, 20, "line 1"},
		{"one", 1, 1, "line 20"},
		{"zero", 0, 0, ""},
		{"negative", -3, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Window(tt.n)
			if len(got) != tt.wantLen {
				t.Fatalf("Window(%d) len = %d, want %d", tt.n, len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Text != tt.wantFirst {
				t.Errorf("Window(%d)[0] = %q, want %q", tt.n, got[0].Text, tt.wantFirst)
			}
			if tt.wantLen > 0 && got[len(got)-1].Text != "line 20" {
				t.Errorf("Window(%d) last = %q, want line 20", tt.n, got[len(got)-1].Text)
			}
		})
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Append(utt(1))
	snap := s.Snapshot()
	snap[0].Text = "mutated"
	s.Append(utt(2))

	if got := s.Snapshot()[0].Text; got != "line 1" {
		t.Errorf("store entry changed through snapshot: %q", got)
	}
	if len(snap) != 1 {
		t.Errorf("snapshot grew to %d after append", len(snap))
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Append(utt(1))
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len after Reset = %d", s.Len())
	}
	if snap := s.Snapshot(); snap == nil || len(snap) != 0 {
		t.Errorf("Snapshot after Reset = %v, want empty non-nil", snap)
	}
	if n := s.Append(utt(2)); n != 1 {
		t.Errorf("Append after Reset returned %d, want 1", n)
	}
}

func TestStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append(utt(i))
				_ = s.Window(15)
			}
		}()
	}
	wg.Wait()
	if s.Len() != 400 {
		t.Errorf("Len = %d, want 400", s.Len())
	}
}
