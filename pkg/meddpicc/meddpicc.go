// Package meddpicc defines the qualification scorecard produced for a sales
// call: one assessment per MEDDPICC area, suggested follow-up questions, an
// intent-confidence verdict and a recommended next action.
//
// The JSON shape matches what the analysis endpoint returns. Every consumer
// must tolerate absent fields, so Parse fills gaps with neutral defaults
// instead of failing.
package meddpicc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Area identifies one of the eight MEDDPICC qualification areas.
type Area string

const (
	Metrics          Area = "metrics"
	EconomicBuyer    Area = "economic_buyer"
	DecisionProcess  Area = "decision_process"
	DecisionCriteria Area = "decision_criteria"
	Pain             Area = "pain"
	Implications     Area = "implications"
	Champion         Area = "champion"
	Competition      Area = "competition"
)

// Areas lists all areas in scorecard order.
var Areas = []Area{
	Metrics, EconomicBuyer, DecisionProcess, DecisionCriteria,
	Pain, Implications, Champion, Competition,
}

// Title returns the human-readable area name.
func (a Area) Title() string {
	switch a {
	case Metrics:
		return "Metrics"
	case EconomicBuyer:
		return "Economic Buyer"
	case DecisionProcess:
		return "Decision Process"
	case DecisionCriteria:
		return "Decision Criteria"
	case Pain:
		return "Pain"
	case Implications:
		return "Implications"
	case Champion:
		return "Champion"
	case Competition:
		return "Competition"
	default:
		return string(a)
	}
}

// Valid reports whether a is one of the eight known areas.
func (a Area) Valid() bool {
	for _, known := range Areas {
		if a == known {
			return true
		}
	}
	return false
}

// Status is the detection state of an area.
type Status string

const (
	Detected    Status = "detected"
	Weak        Status = "weak"
	NotDetected Status = "not_detected"
)

// Label returns the short display label used on the scorecard.
func (s Status) Label() string {
	switch s {
	case Detected:
		return "Confirmed"
	case Weak:
		return "Weak"
	default:
		return "Missing"
	}
}

// Priority ranks a suggested question.
type Priority string

const (
	High   Priority = "high"
	Medium Priority = "medium"
	Low    Priority = "low"
)

// Level is the coarse intent-confidence verdict.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Action is the recommended next step for the deal.
type Action string

const (
	Proceed    Action = "proceed"
	Requalify  Action = "re_qualify"
	Disengage  Action = "disengage"
	noneAction Action = ""
)

// Source says where an Analysis came from.
type Source string

const (
	// SourceModel is a genuine model response.
	SourceModel Source = "model"
	// SourceDemo is the fixed payload returned when no model credential is configured.
	SourceDemo Source = "demo"
	// SourceHeuristic is the local keyword fallback.
	SourceHeuristic Source = "heuristic"
)

// AreaAssessment is the state of a single qualification area.
type AreaAssessment struct {
	Status      Status   `json:"status"`
	Evidence    []string `json:"evidence"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info"`
}

// SuggestedQuestion is a follow-up question the rep may ask.
type SuggestedQuestion struct {
	Area     Area     `json:"meddpicc_area"`
	Priority Priority `json:"priority"`
	Question string   `json:"question"`
	WhyNow   string   `json:"why_now"`
}

// IntentConfidence is the overall verdict on how qualified the prospect is.
type IntentConfidence struct {
	Level         Level    `json:"level"`
	Reasoning     []string `json:"reasoning"`
	DealRiskFlags []string `json:"deal_risk_flags"`
}

// NextAction is the recommended next step with its rationale.
type NextAction struct {
	Action             Action   `json:"action"`
	Rationale          string   `json:"rationale"`
	ImmediateNextSteps []string `json:"immediate_next_steps"`
}

// Analysis is one complete scorecard. It replaces the previous one wholesale.
type Analysis struct {
	MEDDPICC              map[Area]AreaAssessment `json:"meddpicc"`
	SuggestedQuestions    []SuggestedQuestion     `json:"suggested_questions"`
	IntentConfidence      IntentConfidence        `json:"intent_confidence"`
	RecommendedNextAction NextAction              `json:"recommended_next_action"`
	Source                Source                  `json:"source,omitempty"`
}

// Parse decodes an analysis JSON object and normalizes it. Only malformed JSON
// is an error; missing or unrecognised fields fall back to neutral values.
func Parse(data []byte) (*Analysis, error) {
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("meddpicc: decode analysis: %w", err)
	}
	a.Normalize()
	return &a, nil
}

// Normalize fills every area, clamps confidences to [0,1], maps unknown enum
// values to their neutral value and drops empty questions. It is idempotent.
func (a *Analysis) Normalize() {
	areas := make(map[Area]AreaAssessment, len(Areas))
	for _, area := range Areas {
		as := a.MEDDPICC[area]
		as.Status = normalizeStatus(as.Status)
		as.Confidence = clamp01(as.Confidence)
		if as.Evidence == nil {
			as.Evidence = []string{}
		}
		if as.MissingInfo == nil {
			as.MissingInfo = []string{}
		}
		areas[area] = as
	}
	a.MEDDPICC = areas

	qs := make([]SuggestedQuestion, 0, len(a.SuggestedQuestions))
	for _, q := range a.SuggestedQuestions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		switch q.Priority {
		case High, Medium, Low:
		default:
			q.Priority = Medium
		}
		qs = append(qs, q)
	}
	a.SuggestedQuestions = qs

	switch a.IntentConfidence.Level {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		a.IntentConfidence.Level = LevelLow
	}
	if a.IntentConfidence.Reasoning == nil {
		a.IntentConfidence.Reasoning = []string{}
	}
	if a.IntentConfidence.DealRiskFlags == nil {
		a.IntentConfidence.DealRiskFlags = []string{}
	}

	switch a.RecommendedNextAction.Action {
	case Proceed, Requalify, Disengage, noneAction:
	default:
		a.RecommendedNextAction.Action = noneAction
	}
	if a.RecommendedNextAction.ImmediateNextSteps == nil {
		a.RecommendedNextAction.ImmediateNextSteps = []string{}
	}
}

// Clone returns a deep copy of a.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	out.MEDDPICC = make(map[Area]AreaAssessment, len(a.MEDDPICC))
	for k, v := range a.MEDDPICC {
		v.Evidence = cloneStrings(v.Evidence)
		v.MissingInfo = cloneStrings(v.MissingInfo)
		out.MEDDPICC[k] = v
	}
	out.SuggestedQuestions = append([]SuggestedQuestion(nil), a.SuggestedQuestions...)
	out.IntentConfidence.Reasoning = cloneStrings(a.IntentConfidence.Reasoning)
	out.IntentConfidence.DealRiskFlags = cloneStrings(a.IntentConfidence.DealRiskFlags)
	out.RecommendedNextAction.ImmediateNextSteps = cloneStrings(a.RecommendedNextAction.ImmediateNextSteps)
	return &out
}

// Detected reports whether area has status detected.
func (a *Analysis) Detected(area Area) bool {
	return a.MEDDPICC[area].Status == Detected
}

// DeriveLevel applies the intent rule used in the analysis prompt: high when
// pain, implications and decision process are detected together with metrics
// or the economic buyer; medium when pain is detected; low otherwise.
func (a *Analysis) DeriveLevel() Level {
	switch {
	case a.Detected(Pain) && a.Detected(Implications) && a.Detected(DecisionProcess) &&
		(a.Detected(Metrics) || a.Detected(EconomicBuyer)):
		return LevelHigh
	case a.Detected(Pain):
		return LevelMedium
	default:
		return LevelLow
	}
}

func normalizeStatus(s Status) Status {
	switch Status(strings.ToLower(string(s))) {
	case Detected:
		return Detected
	case Weak, "weak/unclear", "unclear":
		return Weak
	default:
		return NotDetected
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
