package analyzer

import (
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
)

func TestUserPrompt(t *testing.T) {
	at := time.Date(2026, 3, 4, 15, 4, 5, 123_000_000, time.FixedZone("CET", 3600))
	got := UserPrompt("call_42", []analysis.Line{
		{Speaker: "rep", Text: "What's slowing the team down?"},
		{Speaker: "prospect", Text: "We waste 8 hours a week."},
	}, at, 5)

	for _, want := range []string{
		"Call ID: call_42\n",
		"Timestamp: 2026-03-04T14:04:05.123Z\n",
		"REP: What's slowing the team down?\nPROSPECT: We waste 8 hours a week.\n",
		"Suggest up to 5 questions max",
		"- High: Pain + Implications detected",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n---\n%s", want, got)
		}
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"fence without newline", "```json{\"a\":1}```", `{"a":1}`},
		{"surrounding space", "  \n```json\n{}\n```  ", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
