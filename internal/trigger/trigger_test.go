package trigger

import (
	"testing"

	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/pkg/types"
)

func say(text string) types.Utterance { return types.Utterance{Speaker: "Speaker 1", Text: text} }

func TestKeyword_ShouldAnalyze(t *testing.T) {
	t.Parallel()

	p := NewKeyword(nil, 0)
	tests := []struct {
		name string
		n    int
		text string
		want bool
	}{
		{"empty transcript never fires", 0, "what is the budget?", false},
		{"keyword fires off cadence", 1, "What is the BUDGET for this?", true},
		{"dollar sign", 2, "around $50K", true},
		{"substring match", 4, "the painful part", true},
		{"no keyword off cadence", 4, "sounds good", false},
		{"no keyword on cadence", 6, "sounds good", true},
		{"keyword wins before cadence", 5, "our decision makers", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldAnalyze(tt.n, say(tt.text)); got != tt.want {
				t.Errorf("ShouldAnalyze(%d, %q) = %v, want %v", tt.n, tt.text, got, tt.want)
			}
		})
	}
}

func TestKeyword_CustomKeywords(t *testing.T) {
	t.Parallel()

	p := NewKeyword([]string{" Champion ", ""}, 10)
	if !p.ShouldAnalyze(1, say("our champion is Dana")) {
		t.Error("custom keyword did not fire")
	}
	if p.ShouldAnalyze(1, say("the budget is fine")) {
		t.Error("default keyword fired after override")
	}
	if !p.ShouldAnalyze(10, say("ok")) {
		t.Error("custom cadence did not fire")
	}
}

func TestCadence_ShouldAnalyze(t *testing.T) {
	t.Parallel()

	p := NewCadence(0)
	var fired []int
	for n := 0; n <= 6; n++ {
		if p.ShouldAnalyze(n, say("budget")) {
			fired = append(fired, n)
		}
	}
	want := []int{2, 4, 6}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestKeyword_DemoScript(t *testing.T) {
	t.Parallel()

	p := NewKeyword(nil, 0)
	var fired []int
	for i, u := range demo.Script {
		if p.ShouldAnalyze(i+1, u) {
			fired = append(fired, i+1)
		}
	}
	want := []int{1, 3, 6, 7, 8, 9}
	if len(fired) != len(want) {
		t.Fatalf("fired at %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired at %v, want %v", fired, want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		policy  string
		wantErr bool
	}{
		{"default", "", false},
		{"keyword", PolicyKeyword, false},
		{"cadence", PolicyCadence, false},
		{"unknown", "random", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.policy, nil, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) err = %v, wantErr %v", tt.policy, err, tt.wantErr)
			}
			if !tt.wantErr && p == nil {
				t.Fatal("nil policy")
			}
		})
	}
}
