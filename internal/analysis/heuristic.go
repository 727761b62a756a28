package analysis

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/types"
)

// areaKeywords are the lower-case cues the heuristic looks for per area.
var areaKeywords = map[meddpicc.Area][]string{
	meddpicc.Metrics:          {"hours", "time", "%", "week"},
	meddpicc.EconomicBuyer:    {"$", "budget", "cro", "50k"},
	meddpicc.DecisionProcess:  {"process", "evaluation", "sign-off", "timeline", "weeks"},
	meddpicc.DecisionCriteria: {"criteria", "requirement", "must have", "feature"},
	meddpicc.Pain:             {"problem", "waste", "frustrat", "too much", "nowhere"},
	meddpicc.Implications:     {"goal", "need to", "quarter", "headcount", "impact"},
	meddpicc.Champion:         {"champion", "excited", "advocate"},
	meddpicc.Competition:      {"competitor", "alternative", "vendor", "evaluating other"},
}

type bankEntry struct {
	question string
	whyNow   string
	missing  []string
}

var questionBank = map[meddpicc.Area]bankEntry{
	meddpicc.Metrics: {
		question: "How are you measuring the impact of this today?",
		whyNow:   "No quantified impact yet",
		missing:  []string{"Quantified business impact", "Baseline KPIs"},
	},
	meddpicc.EconomicBuyer: {
		question: "Who ultimately signs off on the budget for this?",
		whyNow:   "Budget authority is unclear",
		missing:  []string{"Budget owner", "Approval authority"},
	},
	meddpicc.DecisionProcess: {
		question: "What steps does a purchase like this go through on your side?",
		whyNow:   "Buying process not mapped",
		missing:  []string{"Evaluation steps", "Decision timeline"},
	},
	meddpicc.DecisionCriteria: {
		question: "What are the top 3 criteria you'll use to make your decision?",
		whyNow:   "Need to understand evaluation factors",
		missing:  []string{"What features matter most", "Success criteria"},
	},
	meddpicc.Pain: {
		question: "What's the biggest problem this would solve for your team?",
		whyNow:   "Pain not confirmed",
		missing:  []string{"Current problem", "Who feels it"},
	},
	meddpicc.Implications: {
		question: "What happens if this isn't solved this quarter?",
		whyNow:   "Consequences of inaction unknown",
		missing:  []string{"Consequences of not solving"},
	},
	meddpicc.Champion: {
		question: "Who on your team is most excited about solving this problem?",
		whyNow:   "Need to identify an internal advocate",
		missing:  []string{"Internal advocate", "Who's excited about this"},
	},
	meddpicc.Competition: {
		question: "Are you evaluating any other solutions alongside ours?",
		whyNow:   "Competitive landscape unclear",
		missing:  []string{"Current alternatives", "Other vendors being considered"},
	},
}

var riskFlags = map[meddpicc.Area]string{
	meddpicc.Pain:            "Pain not confirmed",
	meddpicc.EconomicBuyer:   "Economic buyer not identified",
	meddpicc.DecisionProcess: "Decision process unknown",
	meddpicc.Champion:        "No champion identified",
	meddpicc.Competition:     "Competition landscape unknown",
}

// Heuristic scores transcript by keyword matching alone. It is deterministic
// and needs no network; the result is labelled [meddpicc.SourceHeuristic].
//
// A matched area is weak (0.4) while fewer than four utterances exist and
// detected afterwards, with confidence 0.6 + 0.05 per utterance capped at 0.9.
// Unmatched areas are not detected (0.1). Evidence is the first two lines that
// mention a cue of the area. Missing and weak areas get one question each,
// high priority before medium.
func Heuristic(transcript []types.Utterance) *meddpicc.Analysis {
	n := len(transcript)
	lowered := make([]string, n)
	for i, u := range transcript {
		lowered[i] = strings.ToLower(u.Text)
	}
	all := strings.Join(lowered, " ")

	a := &meddpicc.Analysis{
		MEDDPICC: make(map[meddpicc.Area]meddpicc.AreaAssessment, len(meddpicc.Areas)),
		Source:   meddpicc.SourceHeuristic,
	}
	for _, area := range meddpicc.Areas {
		kws := areaKeywords[area]
		if !containsAny(all, kws) {
			a.MEDDPICC[area] = meddpicc.AreaAssessment{
				Status:      meddpicc.NotDetected,
				Confidence:  0.1,
				MissingInfo: slices.Clone(questionBank[area].missing),
			}
			continue
		}
		as := meddpicc.AreaAssessment{Status: meddpicc.Weak, Confidence: 0.4}
		if n >= 4 {
			as.Status = meddpicc.Detected
			as.Confidence = min(0.6+0.05*float64(n), 0.9)
		} else {
			as.MissingInfo = slices.Clone(questionBank[area].missing)
		}
		for i, line := range lowered {
			if len(as.Evidence) == 2 {
				break
			}
			if containsAny(line, kws) {
				as.Evidence = append(as.Evidence, transcript[i].Text)
			}
		}
		a.MEDDPICC[area] = as
	}

	for _, area := range meddpicc.Areas {
		var p meddpicc.Priority
		switch a.MEDDPICC[area].Status {
		case meddpicc.NotDetected:
			p = meddpicc.High
		case meddpicc.Weak:
			p = meddpicc.Medium
		default:
			continue
		}
		b := questionBank[area]
		a.SuggestedQuestions = append(a.SuggestedQuestions, meddpicc.SuggestedQuestion{
			Area:     area,
			Priority: p,
			Question: b.question,
			WhyNow:   b.whyNow,
		})
	}
	slices.SortStableFunc(a.SuggestedQuestions, func(x, y meddpicc.SuggestedQuestion) int {
		return cmp.Compare(priorityRank(x.Priority), priorityRank(y.Priority))
	})

	level := a.DeriveLevel()
	a.IntentConfidence.Level = level
	for _, area := range meddpicc.Areas {
		if a.Detected(area) {
			a.IntentConfidence.Reasoning = append(a.IntentConfidence.Reasoning, area.Title()+" mentioned in the conversation")
		} else if flag, ok := riskFlags[area]; ok {
			a.IntentConfidence.DealRiskFlags = append(a.IntentConfidence.DealRiskFlags, flag)
		}
	}
	if level == meddpicc.LevelHigh {
		a.RecommendedNextAction = meddpicc.NextAction{
			Action:    meddpicc.Proceed,
			Rationale: "Pain, impact and buying process are all on the table",
		}
	} else {
		a.RecommendedNextAction = meddpicc.NextAction{
			Action:    meddpicc.Requalify,
			Rationale: "Key qualification areas are still open",
		}
	}
	for _, q := range a.SuggestedQuestions {
		if len(a.RecommendedNextAction.ImmediateNextSteps) == 3 {
			break
		}
		a.RecommendedNextAction.ImmediateNextSteps = append(a.RecommendedNextAction.ImmediateNextSteps, "Ask: "+q.Question)
	}

	a.Normalize()
	return a
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func priorityRank(p meddpicc.Priority) int {
	switch p {
	case meddpicc.High:
		return 0
	case meddpicc.Medium:
		return 1
	default:
		return 2
	}
}
