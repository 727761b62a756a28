// Package phonetic implements the [transcript.PhoneticMatcher] interface using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity for ranked candidate selection.
//
// Speech recognizers routinely split or mangle product names, competitor names
// and sales jargon ("med pick" for MEDDPICC, "sales force" for Salesforce).
// The matcher proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input and for each glossary term, both per token and for the
//     concatenated form. Overlapping codes make the term a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest similarity above the phonetic threshold wins. Without a phonetic
//     candidate, a pure similarity pass with a higher fuzzy threshold applies.
//
// Single tokens shorter than the minimum length never match anything other
// than themselves, which keeps everyday words from being rewritten into short
// glossary terms.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.88
	defaultMinLength         = 6
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMinLength sets the shortest single-token glossary term that may be the
// target of a fuzzy correction. Shorter terms only match case-insensitively
// exact input. Default: 6.
func WithMinLength(n int) Option {
	return func(m *Matcher) {
		m.minLength = n
	}
}

// Matcher is a phonetic glossary matcher. It implements [transcript.PhoneticMatcher].
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minLength         int
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minLength:         defaultMinLength,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match attempts to find the glossary term most similar to word.
//
// word may be a single word or a space-separated phrase (n-gram). Return
// values follow the [transcript.PhoneticMatcher] contract: when matched is
// false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	wordLower := strings.ToLower(strings.TrimSpace(word))
	if len(terms) == 0 || wordLower == "" {
		return word, 0, false
	}
	wordTokens := strings.Fields(wordLower)
	wordConcat := strings.Join(wordTokens, "")
	inputCodes := codesFor(wordTokens, wordConcat)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		termTokens := strings.Fields(termLower)
		termConcat := strings.Join(termTokens, "")

		if wordConcat == termConcat {
			return term, 1, true
		}
		if len(wordTokens) == 1 && len(termTokens) == 1 && len(termConcat) < m.minLength {
			continue
		}

		score := similarity(wordTokens, termTokens, wordLower, termLower, wordConcat, termConcat)
		if codesOverlap(inputCodes, codesFor(termTokens, termConcat)) {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{term: term, score: score, phonetic: true}
			}
		} else if !best.phonetic && score >= m.fuzzyThreshold && score > best.score {
			best = candidate{term: term, score: score}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// codesFor returns the union of Double Metaphone codes of the tokens and of
// their concatenation. Empty codes are excluded.
func codesFor(tokens []string, concat string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2+2)
	add := func(s string) {
		p, sec := matchr.DoubleMetaphone(s)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	if len(tokens) > 1 {
		add(concat)
	}
	for _, t := range tokens {
		add(t)
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score between input and term using the
// full strings, the space-stripped strings and, when both sides have the same
// number of tokens, the mean of position-aligned token scores.
func similarity(inputTokens, termTokens []string, inputFull, termFull, inputConcat, termConcat string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if s := matchr.JaroWinkler(inputConcat, termConcat, false); s > score {
		score = s
	}

	if len(inputTokens) > 1 && len(inputTokens) == len(termTokens) {
		var sum float64
		for i := range inputTokens {
			sum += matchr.JaroWinkler(inputTokens[i], termTokens[i], false)
		}
		if s := sum / float64(len(inputTokens)); s > score {
			score = s
		}
	}

	return score
}
