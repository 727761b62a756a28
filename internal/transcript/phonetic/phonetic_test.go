package phonetic_test

import (
	"testing"

	"github.com/MrWong99/closepath/internal/transcript/phonetic"
)

var glossary = []string{"MEDDPICC", "Salesforce", "HubSpot", "Gong"}

func TestMatcher_SplitWordJoined(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	tests := []struct {
		input string
		want  string
	}{
		{"hub spot", "HubSpot"},
		{"sales force", "Salesforce"},
		{"med pick", "MEDDPICC"},
	}
	for _, tt := range tests {
		corrected, conf, matched := m.Match(tt.input, glossary)
		if !matched {
			t.Errorf("Match(%q): matched=false, want true", tt.input)
			continue
		}
		if corrected != tt.want {
			t.Errorf("Match(%q): corrected=%q, want %q", tt.input, corrected, tt.want)
		}
		if conf < 0.8 {
			t.Errorf("Match(%q): confidence=%f, want >= 0.8", tt.input, conf)
		}
	}
}

func TestMatcher_ExactMatchRestoresCasing(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("GONG", glossary)
	if !matched {
		t.Fatal("Match(GONG): matched=false, want true")
	}
	if corrected != "Gong" {
		t.Errorf("corrected=%q, want Gong", corrected)
	}
	if conf != 1 {
		t.Errorf("conf=%f, want 1", conf)
	}
}

func TestMatcher_ShortTermsNeedExactInput(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	// "going" sounds like "Gong" but short single-token terms are exact-only.
	corrected, conf, matched := m.Match("going", glossary)
	if matched {
		t.Fatalf("Match(going): matched=true (%q), want false", corrected)
	}
	if corrected != "going" || conf != 0 {
		t.Errorf("got (%q, %f), want (going, 0)", corrected, conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	corrected, conf, matched := m.Match("hello", glossary)
	if matched {
		t.Fatalf("Match(hello): matched=true (%q), want false", corrected)
	}
	if corrected != "hello" {
		t.Errorf("corrected=%q, want original", corrected)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, matched := m.Match("med pick", glossary); matched {
		t.Fatal("Match with threshold=0.99 should reject near-matches, got matched=true")
	}
}

func TestMatcher_MinLengthOption(t *testing.T) {
	t.Parallel()

	m := phonetic.New(phonetic.WithMinLength(20))
	if _, _, matched := m.Match("salesforse", glossary); matched {
		t.Fatal("Match with min length 20 should reject single-token fuzzy matches")
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	if corrected, conf, matched := m.Match("meddpicc", nil); matched || corrected != "meddpicc" || conf != 0 {
		t.Errorf("nil terms: got (%q, %f, %v)", corrected, conf, matched)
	}
	if corrected, conf, matched := m.Match("", glossary); matched || corrected != "" || conf != 0 {
		t.Errorf("empty word: got (%q, %f, %v)", corrected, conf, matched)
	}
}
