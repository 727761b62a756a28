package transcript

import (
	"strings"
	"sync"
	"unicode"
)

// maxWindow bounds the n-gram width considered per position.
const maxWindow = 3

// Corrector rewrites near-miss spans of recognized text to glossary terms.
// Terms can be swapped at runtime with [Corrector.SetTerms].
//
// Corrector is safe for concurrent use.
type Corrector struct {
	matcher PhoneticMatcher

	mu    sync.RWMutex
	terms []string
}

// NewCorrector returns a Corrector that uses m against terms. A nil matcher
// or an empty term list yields a corrector that never changes its input.
func NewCorrector(m PhoneticMatcher, terms []string) *Corrector {
	c := &Corrector{matcher: m}
	c.SetTerms(terms)
	return c
}

// SetTerms replaces the glossary. Blank entries are ignored.
func (c *Corrector) SetTerms(terms []string) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	c.mu.Lock()
	c.terms = cleaned
	c.mu.Unlock()
}

// Terms returns a copy of the current glossary.
func (c *Corrector) Terms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.terms...)
}

// Correct returns text with glossary substitutions applied and the list of
// substitutions made. At each position every window of up to three words is
// offered to the matcher and the highest-scoring span wins, so "sales force"
// is replaced as one span. Punctuation around a span is preserved.
//
// The returned slice is non-nil; it is empty when nothing changed.
func (c *Corrector) Correct(text string) (string, []Correction) {
	corrections := []Correction{}
	terms := c.Terms()
	if c.matcher == nil || len(terms) == 0 {
		return text, corrections
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text, corrections
	}

	out := make([]string, 0, len(words))
	changed := false
	for i := 0; i < len(words); {
		best := c.bestSpan(words, i, terms)
		// A wide span that starts with an unrelated word loses to an
		// overlapping span starting one word later.
		if best.n > 1 && i+1 < len(words) && c.bestSpan(words, i+1, terms).conf > best.conf {
			best = span{}
		}
		if best.n == 0 {
			out = append(out, words[i])
			i++
			continue
		}
		if best.corrected != best.core {
			corrections = append(corrections, Correction{
				Original:   best.core,
				Corrected:  best.corrected,
				Confidence: best.conf,
			})
			changed = true
		}
		out = append(out, best.lead+best.corrected+best.trail)
		i += best.n
	}
	if !changed {
		return text, corrections
	}
	return strings.Join(out, " "), corrections
}

type span struct {
	n                 int
	lead, core, trail string
	corrected         string
	conf              float64
}

// bestSpan returns the highest-scoring match among the windows starting at
// words[i]. Ties go to the wider window. The zero span means no match.
func (c *Corrector) bestSpan(words []string, i int, terms []string) span {
	var best span
	for n := min(maxWindow, len(words)-i); n >= 1; n-- {
		lead, core, trail := splitPunct(words[i : i+n])
		if core == "" {
			continue
		}
		corrected, conf, ok := c.matcher.Match(core, terms)
		if ok && conf > best.conf {
			best = span{n: n, lead: lead, core: core, trail: trail, corrected: corrected, conf: conf}
		}
	}
	return best
}

// splitPunct joins a word window into its matchable core, stripping leading
// punctuation from the first word and trailing punctuation from the last.
// Windows with punctuation between words are rejected (core is empty).
func splitPunct(window []string) (lead, core, trail string) {
	isPunct := func(r rune) bool { return unicode.IsPunct(r) && r != '$' && r != '%' }

	first := window[0]
	trimmedFirst := strings.TrimLeftFunc(first, isPunct)
	lead = first[:len(first)-len(trimmedFirst)]

	last := window[len(window)-1]
	if len(window) == 1 {
		last = trimmedFirst
	}
	trimmedLast := strings.TrimRightFunc(last, isPunct)
	trail = last[len(trimmedLast):]

	parts := make([]string, len(window))
	copy(parts, window)
	parts[0] = trimmedFirst
	parts[len(parts)-1] = trimmedLast
	if len(window) == 1 {
		parts[0] = trimmedLast
	}
	for j, p := range parts {
		if j < len(parts)-1 && strings.IndexFunc(p, isPunct) == len(p)-1 && len(p) > 0 {
			return "", "", ""
		}
	}
	return lead, strings.Join(parts, " "), trail
}
