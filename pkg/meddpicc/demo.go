package meddpicc

// DemoAnalysis returns the fixed scorecard served when no model credential is
// configured. It matches the scripted demo call and is labelled SourceDemo.
func DemoAnalysis() *Analysis {
	a := &Analysis{
		MEDDPICC: map[Area]AreaAssessment{
			Metrics: {
				Status:      Detected,
				Evidence:    []string{"8 hours per week wasted", "20% of selling time"},
				Confidence:  0.85,
				MissingInfo: []string{"Specific revenue impact"},
			},
			EconomicBuyer: {
				Status:      Weak,
				Evidence:    []string{"CRO approves budget", "$50K annually"},
				Confidence:  0.6,
				MissingInfo: []string{"CRO's name", "Exact decision authority"},
			},
			DecisionProcess: {
				Status:     Detected,
				Evidence:   []string{"Technical evaluation", "Security sign-off", "6-8 weeks timeline"},
				Confidence: 0.9,
			},
			DecisionCriteria: {
				Status:      Weak,
				Confidence:  0.3,
				MissingInfo: []string{"What features matter most", "Success criteria"},
			},
			Pain: {
				Status:     Detected,
				Evidence:   []string{"Wasting time on unqualified leads", "Deals going nowhere"},
				Confidence: 0.9,
			},
			Implications: {
				Status:      Detected,
				Evidence:    []string{"VP of Sales set goal for pipeline quality", "Need to close more with same headcount"},
				Confidence:  0.75,
				MissingInfo: []string{"Consequences of not solving"},
			},
			Champion: {
				Status:      NotDetected,
				Confidence:  0.1,
				MissingInfo: []string{"Internal advocate", "Who's excited about this"},
			},
			Competition: {
				Status:      NotDetected,
				Confidence:  0.1,
				MissingInfo: []string{"Current alternatives", "Other vendors being considered"},
			},
		},
		SuggestedQuestions: []SuggestedQuestion{
			{
				Area:     Champion,
				Priority: High,
				Question: "Who on your team is most excited about solving this problem?",
				WhyNow:   "Need to identify an internal advocate",
			},
			{
				Area:     Competition,
				Priority: High,
				Question: "Are you evaluating any other solutions alongside ours?",
				WhyNow:   "Competitive landscape unclear",
			},
			{
				Area:     DecisionCriteria,
				Priority: Medium,
				Question: "What are the top 3 criteria you'll use to make your decision?",
				WhyNow:   "Need to understand evaluation factors",
			},
		},
		IntentConfidence: IntentConfidence{
			Level: LevelMedium,
			Reasoning: []string{
				"Clear pain identified with quantified impact",
				"Decision process outlined with timeline",
				"Budget authority mentioned but not confirmed",
			},
			DealRiskFlags: []string{
				"No champion identified",
				"Competition landscape unknown",
				"Economic buyer not directly engaged",
			},
		},
		RecommendedNextAction: NextAction{
			Action:    Proceed,
			Rationale: "Quantified pain and a defined buying process justify continued investment",
			ImmediateNextSteps: []string{
				"Confirm the CRO's involvement and budget authority",
				"Identify an internal champion",
				"Map competing alternatives",
			},
		},
		Source: SourceDemo,
	}
	a.Normalize()
	return a
}
