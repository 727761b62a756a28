// Package transcript holds the running transcript of a sales call and the
// glossary corrector applied to recognized speech before it is stored.
//
// Speech recognizers regularly mangle product names, competitor names and
// sales jargon. The [Corrector] slides n-gram windows over each final
// utterance and asks a [PhoneticMatcher] whether the window sounds like a
// configured glossary term. Every substitution is recorded as a [Correction]
// so callers can audit what changed; the unmodified text is kept on the
// utterance as RawText.
package transcript

// Correction captures a single substitution made by the [Corrector].
type Correction struct {
	// Original is the span as produced by the recognizer.
	Original string

	// Corrected is the glossary term that replaced it.
	Corrected string

	// Confidence is the matcher's similarity score (0.0–1.0).
	Confidence float64
}

// PhoneticMatcher resolves a word or short phrase to a known glossary term
// based on pronunciation similarity. No network calls.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match attempts to find the term from terms that is most phonetically
	// similar to word.
	//
	// When matched is false, corrected must equal word unchanged and
	// confidence must be 0.
	Match(word string, terms []string) (corrected string, confidence float64, matched bool)
}
