// Package trigger decides when a growing transcript is worth re-analysing.
//
// Policies are consulted after every append with the new transcript length
// and the utterance just added. They are deterministic and never fire on an
// empty transcript.
package trigger

import (
	"fmt"
	"strings"

	"github.com/MrWong99/closepath/pkg/types"
)

// Policy names accepted by [New].
const (
	PolicyKeyword = "keyword"
	PolicyCadence = "cadence"
)

// Defaults.
const (
	DefaultKeywordCadence = 3
	DefaultCadence        = 2
)

// DefaultKeywords are the qualification cues that trigger an immediate
// analysis under the keyword policy.
var DefaultKeywords = []string{
	"budget", "decision", "problem", "pain", "timeline",
	"process", "buyer", "cost", "$",
}

// Policy decides whether to request an analysis.
type Policy interface {
	// ShouldAnalyze is called after an append; n is the new transcript length.
	ShouldAnalyze(n int, latest types.Utterance) bool
}

// Keyword fires when the latest utterance mentions one of its keywords and
// otherwise every Cadence-th utterance.
type Keyword struct {
	keywords []string
	cadence  int
}

var _ Policy = (*Keyword)(nil)

// NewKeyword returns a Keyword policy. Empty keywords select
// [DefaultKeywords]; a non-positive cadence selects [DefaultKeywordCadence].
func NewKeyword(keywords []string, cadence int) *Keyword {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	if cadence <= 0 {
		cadence = DefaultKeywordCadence
	}
	return &Keyword{keywords: lowered, cadence: cadence}
}

// ShouldAnalyze implements [Policy].
func (k *Keyword) ShouldAnalyze(n int, latest types.Utterance) bool {
	if n <= 0 {
		return false
	}
	text := strings.ToLower(latest.Text)
	for _, kw := range k.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return n%k.cadence == 0
}

// Cadence fires on every N-th utterance.
type Cadence struct {
	every int
}

var _ Policy = (*Cadence)(nil)

// NewCadence returns a Cadence policy. A non-positive every selects
// [DefaultCadence].
func NewCadence(every int) *Cadence {
	if every <= 0 {
		every = DefaultCadence
	}
	return &Cadence{every: every}
}

// ShouldAnalyze implements [Policy].
func (c *Cadence) ShouldAnalyze(n int, _ types.Utterance) bool {
	return n > 0 && n%c.every == 0
}

// New builds a policy by name. An empty name selects the keyword policy.
// cadence applies to both policies.
func New(name string, keywords []string, cadence int) (Policy, error) {
	switch name {
	case "", PolicyKeyword:
		return NewKeyword(keywords, cadence), nil
	case PolicyCadence:
		return NewCadence(cadence), nil
	default:
		return nil, fmt.Errorf("trigger: unknown policy %q", name)
	}
}
