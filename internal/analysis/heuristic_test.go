package analysis

import (
	"math"
	"reflect"
	"testing"

	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/types"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestHeuristic_FullDemoScript(t *testing.T) {
	t.Parallel()

	a := Heuristic(demo.Script)
	if a.Source != meddpicc.SourceHeuristic {
		t.Errorf("Source = %q, want heuristic", a.Source)
	}

	wantStatus := map[meddpicc.Area]meddpicc.Status{
		meddpicc.Metrics:          meddpicc.Detected,
		meddpicc.EconomicBuyer:    meddpicc.Detected,
		meddpicc.DecisionProcess:  meddpicc.Detected,
		meddpicc.DecisionCriteria: meddpicc.NotDetected,
		meddpicc.Pain:             meddpicc.Detected,
		meddpicc.Implications:     meddpicc.Detected,
		meddpicc.Champion:         meddpicc.NotDetected,
		meddpicc.Competition:      meddpicc.NotDetected,
	}
	for area, want := range wantStatus {
		got := a.MEDDPICC[area]
		if got.Status != want {
			t.Errorf("%s status = %q, want %q", area, got.Status, want)
		}
		switch want {
		case meddpicc.Detected:
			if !near(got.Confidence, 0.9) {
				t.Errorf("%s confidence = %v, want 0.9 (capped)", area, got.Confidence)
			}
		case meddpicc.NotDetected:
			if !near(got.Confidence, 0.1) {
				t.Errorf("%s confidence = %v, want 0.1", area, got.Confidence)
			}
			if len(got.Evidence) != 0 {
				t.Errorf("%s evidence = %v, want none", area, got.Evidence)
			}
		}
	}

	pain := a.MEDDPICC[meddpicc.Pain].Evidence
	if len(pain) != 2 || pain[0] != demo.Script[1].Text || pain[1] != demo.Script[2].Text {
		t.Errorf("pain evidence = %q", pain)
	}

	var areas []meddpicc.Area
	for _, q := range a.SuggestedQuestions {
		areas = append(areas, q.Area)
		if q.Priority != meddpicc.High {
			t.Errorf("%s priority = %q, want high", q.Area, q.Priority)
		}
	}
	want := []meddpicc.Area{meddpicc.DecisionCriteria, meddpicc.Champion, meddpicc.Competition}
	if !reflect.DeepEqual(areas, want) {
		t.Errorf("question areas = %v, want %v", areas, want)
	}

	if a.IntentConfidence.Level != meddpicc.LevelHigh {
		t.Errorf("level = %q, want high", a.IntentConfidence.Level)
	}
	if a.RecommendedNextAction.Action != meddpicc.Proceed {
		t.Errorf("action = %q, want proceed", a.RecommendedNextAction.Action)
	}
}

func TestHeuristic_EarlyCallIsWeak(t *testing.T) {
	t.Parallel()

	a := Heuristic(demo.Script[:3])
	for _, area := range []meddpicc.Area{meddpicc.Metrics, meddpicc.DecisionProcess, meddpicc.Pain} {
		got := a.MEDDPICC[area]
		if got.Status != meddpicc.Weak || !near(got.Confidence, 0.4) {
			t.Errorf("%s = %s/%v, want weak/0.4", area, got.Status, got.Confidence)
		}
	}
	if a.IntentConfidence.Level != meddpicc.LevelLow {
		t.Errorf("level = %q, want low", a.IntentConfidence.Level)
	}
	// not-detected areas (high) come before weak ones (medium)
	seenMedium := false
	for _, q := range a.SuggestedQuestions {
		if q.Priority == meddpicc.Medium {
			seenMedium = true
		} else if seenMedium {
			t.Fatalf("high priority question after medium: %+v", a.SuggestedQuestions)
		}
	}
	if len(a.SuggestedQuestions) != len(meddpicc.Areas) {
		t.Errorf("questions = %d, want one per area", len(a.SuggestedQuestions))
	}
}

func TestHeuristic_ConfidenceGrowsWithLength(t *testing.T) {
	t.Parallel()

	lines := func(n int) []types.Utterance {
		out := make([]types.Utterance, n)
		for i := range out {
			out[i] = types.Utterance{Speaker: "Speaker 1", Text: "this problem wastes hours"}
		}
		return out
	}
	tests := []struct {
		n    int
		want float64
	}{
		{4, 0.8},
		{5, 0.85},
		{6, 0.9},
		{12, 0.9},
	}
	for _, tt := range tests {
		got := Heuristic(lines(tt.n)).MEDDPICC[meddpicc.Pain].Confidence
		if !near(got, tt.want) {
			t.Errorf("n=%d: confidence = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestHeuristic_EmptyTranscript(t *testing.T) {
	t.Parallel()

	a := Heuristic(nil)
	for _, area := range meddpicc.Areas {
		if a.MEDDPICC[area].Status != meddpicc.NotDetected {
			t.Errorf("%s = %q, want not_detected", area, a.MEDDPICC[area].Status)
		}
	}
	if a.IntentConfidence.Level != meddpicc.LevelLow {
		t.Errorf("level = %q", a.IntentConfidence.Level)
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	t.Parallel()

	if !reflect.DeepEqual(Heuristic(demo.Script), Heuristic(demo.Script)) {
		t.Error("Heuristic is not deterministic")
	}
	a := Heuristic(nil)
	a.MEDDPICC[meddpicc.Champion].MissingInfo[0] = "mutated"
	if Heuristic(nil).MEDDPICC[meddpicc.Champion].MissingInfo[0] == "mutated" {
		t.Error("Heuristic results share the question bank")
	}
}
