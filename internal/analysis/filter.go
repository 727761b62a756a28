package analysis

import "github.com/MrWong99/closepath/pkg/meddpicc"

// FilterQuestions drops questions whose text is in asked, then keeps at most
// limit of the rest in their original order. A non-positive limit selects
// [DefaultMaxQuestions]. The result is never nil.
func FilterQuestions(qs []meddpicc.SuggestedQuestion, asked map[string]struct{}, limit int) []meddpicc.SuggestedQuestion {
	if limit <= 0 {
		limit = DefaultMaxQuestions
	}
	out := make([]meddpicc.SuggestedQuestion, 0, min(len(qs), limit))
	for _, q := range qs {
		if len(out) == limit {
			break
		}
		if _, done := asked[q.Question]; done {
			continue
		}
		out = append(out, q)
	}
	return out
}
