package transcript_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/closepath/internal/transcript"
	"github.com/MrWong99/closepath/internal/transcript/phonetic"
)

// tableMatcher matches exact lower-case phrases from a fixed table.
type tableMatcher map[string]string

func (m tableMatcher) Match(word string, _ []string) (string, float64, bool) {
	if t, ok := m[strings.ToLower(word)]; ok {
		return t, 0.9, true
	}
	return word, 0, false
}

func TestCorrector_Table(t *testing.T) {
	t.Parallel()

	m := tableMatcher{
		"sales force": "Salesforce",
		"med pick":    "MEDDPICC",
		"gong":        "Gong",
	}
	c := transcript.NewCorrector(m, []string{"Salesforce", "MEDDPICC", "Gong"})

	tests := []struct {
		name  string
		in    string
		want  string
		count int
	}{
		{"two word span", "we run sales force today", "we run Salesforce today", 1},
		{"trailing punctuation kept", "we follow med pick.", "we follow MEDDPICC.", 1},
		{"leading punctuation kept", "(gong) records calls", "(Gong) records calls", 1},
		{"several", "gong and sales force", "Gong and Salesforce", 2},
		{"no match keeps spacing", "nothing  to   see", "nothing  to   see", 0},
		{"punctuation between words blocks span", "sales, force", "sales, force", 0},
		{"empty", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, corrections := c.Correct(tt.in)
			if got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if corrections == nil {
				t.Fatal("corrections is nil, want non-nil")
			}
			if len(corrections) != tt.count {
				t.Errorf("corrections = %+v, want %d", corrections, tt.count)
			}
		})
	}
}

func TestCorrector_UnchangedMatchIsNotACorrection(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(tableMatcher{"gong": "Gong"}, []string{"Gong"})
	got, corrections := c.Correct("Gong is fine")
	if got != "Gong is fine" || len(corrections) != 0 {
		t.Errorf("got (%q, %+v), want unchanged text and no corrections", got, corrections)
	}
}

func TestCorrector_NoTermsOrMatcher(t *testing.T) {
	t.Parallel()

	for _, c := range []*transcript.Corrector{
		transcript.NewCorrector(nil, []string{"Gong"}),
		transcript.NewCorrector(tableMatcher{"gong": "Gong"}, nil),
		transcript.NewCorrector(tableMatcher{"gong": "Gong"}, []string{"  "}),
	} {
		if got, corrections := c.Correct("gong"); got != "gong" || len(corrections) != 0 {
			t.Errorf("got (%q, %+v), want passthrough", got, corrections)
		}
	}
}

func TestCorrector_SetTerms(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(tableMatcher{"gong": "Gong"}, nil)
	c.SetTerms([]string{"Gong", ""})
	if terms := c.Terms(); len(terms) != 1 || terms[0] != "Gong" {
		t.Fatalf("Terms = %v, want [Gong]", terms)
	}
	if got, _ := c.Correct("we use gong"); got != "we use Gong" {
		t.Errorf("Correct after SetTerms = %q", got)
	}
}

func TestCorrector_WithPhoneticMatcher(t *testing.T) {
	t.Parallel()

	c := transcript.NewCorrector(phonetic.New(), []string{"HubSpot", "Salesforce"})
	got, corrections := c.Correct("our data lives in hub spot.")
	if got != "our data lives in HubSpot." {
		t.Errorf("Correct = %q", got)
	}
	if len(corrections) != 1 || corrections[0].Original != "hub spot" {
		t.Errorf("corrections = %+v", corrections)
	}
}
