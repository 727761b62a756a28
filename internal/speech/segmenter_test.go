package speech

import (
	"testing"
	"time"
)

func TestSegmenter_Assign(t *testing.T) {
	t.Parallel()

	start := time.Unix(1_700_000_000, 0)
	at := func(ms int) time.Time { return start.Add(time.Duration(ms) * time.Millisecond) }

	tests := []struct {
		name  string
		times []int
		want  []string
	}{
		{
			name:  "quick succession keeps speaker",
			times: []int{500, 1500, 3000},
			want:  []string{"Speaker 1", "Speaker 1", "Speaker 1"},
		},
		{
			name:  "long pause flips",
			times: []int{1000, 3500},
			want:  []string{"Speaker 1", "Speaker 2"},
		},
		{
			name:  "gap measured from adapter start",
			times: []int{2500},
			want:  []string{"Speaker 2"},
		},
		{
			name:  "exactly the threshold keeps speaker",
			times: []int{2000, 4000},
			want:  []string{"Speaker 1", "Speaker 1"},
		},
		{
			name:  "flips back and forth",
			times: []int{100, 2200, 4300, 4400},
			want:  []string{"Speaker 1", "Speaker 2", "Speaker 1", "Speaker 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegmenter(start, 2*time.Second)
			for i, ms := range tt.times {
				if got := s.Assign(at(ms)); got != tt.want[i] {
					t.Errorf("fragment %d at %dms: got %q, want %q", i, ms, got, tt.want[i])
				}
			}
		})
	}
}

func TestSegmenter_DefaultThreshold(t *testing.T) {
	t.Parallel()

	start := time.Unix(0, 0)
	s := NewSegmenter(start, 0)
	if got := s.Assign(start.Add(DefaultSilenceThreshold + time.Millisecond)); got != "Speaker 2" {
		t.Errorf("got %q, want Speaker 2", got)
	}
	if s.Speaker() != 2 {
		t.Errorf("Speaker() = %d, want 2", s.Speaker())
	}
}
