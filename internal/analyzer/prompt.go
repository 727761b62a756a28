package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
)

// SystemPrompt frames the model as a qualification copilot and pins the JSON
// schema of its answer.
const SystemPrompt = `You are a Real-Time MEDDPICC Qualification Copilot for B2B SaaS sales calls.

Primary Objective: Help the sales rep qualify prospect intent early by:
- Detecting MEDDPICC signals in the live transcript
- Identifying missing/weak qualification areas
- Suggesting short, high-impact follow-up questions
- Producing an end-of-call MEDDPICC scorecard + Intent Confidence Score + Next Action

Constraints (Non-Negotiable):
- Do NOT coach the rep on tone, empathy, objection handling, or talk tracks
- Do NOT summarize the whole call unless it supports qualification
- Do NOT invent details that were not said in the transcript
- Be conservative. If something is unclear, mark it as "weak" or "not_detected"
- Optimize for minimal interruption: prompts must be brief and optional

Focus on these MEDDPICC elements:
- Metrics (measurable impact, targets, KPIs)
- Economic Buyer (budget authority, decision maker)
- Decision Process (steps, timeline, criteria)
- Decision Criteria (what they're evaluating)
- Pain (current problem + consequences)
- Implications (what happens if they don't solve this)
- Champion (internal advocate for your solution)
- Competition (alternatives they're considering)

Output Format: Return ONLY valid JSON with this structure:
{
  "meddpicc": {
    "metrics": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "economic_buyer": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "decision_process": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "decision_criteria": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "pain": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "implications": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "champion": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []},
    "competition": {"status": "detected|weak|not_detected", "evidence": [], "confidence": 0.0, "missing_info": []}
  },
  "suggested_questions": [{"meddpicc_area": "string", "priority": "high|medium|low", "question": "string", "why_now": "string"}],
  "intent_confidence": {"level": "low|medium|high", "reasoning": [], "deal_risk_flags": []},
  "recommended_next_action": {"action": "proceed|re_qualify|disengage", "rationale": "string", "immediate_next_steps": []}
}`

const userPromptTail = `Tasks:
1. Update statuses for all MEDDPICC components
2. Extract evidence from the transcript
3. Identify what is missing/weak
4. Suggest up to %d questions max, highest impact first
5. Output strict JSON only following the schema

Scoring Guidelines:
- Metrics: Detected if measurable impact/KPIs/timelines stated
- Economic Buyer: Detected if budget authority/decision maker identified
- Decision Process: Detected if steps/timeline/criteria described
- Decision Criteria: Detected if evaluation factors or requirements mentioned
- Pain: Detected if clear current problem + consequences described
- Implications: Detected if consequences of inaction or urgency mentioned
- Champion: Detected if internal advocate or enthusiastic supporter identified
- Competition: Detected if alternatives, competitors, or current solutions mentioned

Intent Confidence:
- High: Pain + Implications detected AND (Metrics OR Economic Buyer detected) AND Decision Process clear
- Medium: Pain detected with some process clarity but missing key elements
- Low: Pain weak/not detected OR no Decision Process and unclear buyer`

// UserPrompt renders the per-request prompt: call id, ISO-8601 timestamp and
// one "SPEAKER: text" line per transcript entry, followed by the task list.
func UserPrompt(callID string, lines []analysis.Line, at time.Time, maxQuestions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are receiving a live transcript stream. Update MEDDPICC state conservatively and suggest up to %d questions maximum.\n\n", maxQuestions)
	fmt.Fprintf(&b, "Call ID: %s\n", callID)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", at.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString("Current Transcript:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(l.Speaker), l.Text)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, userPromptTail, maxQuestions)
	return b.String()
}

var fenceReplacer = strings.NewReplacer("```json\n", "", "```json", "", "```\n", "", "```", "")

// StripFences removes markdown code fences a model may wrap its JSON in.
func StripFences(s string) string {
	return strings.TrimSpace(fenceReplacer.Replace(s))
}
