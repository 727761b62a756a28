package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/internal/transcript/phonetic"
	"github.com/MrWong99/closepath/internal/trigger"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/provider/stt"
	sttmock "github.com/MrWong99/closepath/pkg/provider/stt/mock"
	"github.com/MrWong99/closepath/pkg/types"
)

// ── Test doubles ─────────────────────────────────────────────────────────────

type result struct {
	a   *meddpicc.Analysis
	err error
}

type pending struct {
	req   analysis.Request
	reply chan result
}

// fakeClient hands every request to the test, which answers it explicitly.
type fakeClient struct {
	calls chan pending
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: make(chan pending, 16)}
}

func (f *fakeClient) Analyze(ctx context.Context, req analysis.Request) (*meddpicc.Analysis, error) {
	p := pending{req: req, reply: make(chan result, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r.a, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeClient) next(t *testing.T) pending {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an analysis request")
		return pending{}
	}
}

func (f *fakeClient) none(t *testing.T) {
	t.Helper()
	select {
	case p := <-f.calls:
		t.Fatalf("unexpected analysis request with %d lines", len(p.req.Transcript))
	case <-time.After(50 * time.Millisecond):
	}
}

type manualTicker struct{ ch chan time.Time }

func (m *manualTicker) Chan() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()                  {}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("demo feed did not accept tick")
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	utterances []types.Utterance
	scorecards []Snapshot
	ended      []Snapshot
}

func (o *recordingObserver) UtteranceAppended(_ context.Context, _ string, u types.Utterance) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.utterances = append(o.utterances, u)
}

func (o *recordingObserver) ScorecardUpdated(_ context.Context, s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scorecards = append(o.scorecards, s)
}

func (o *recordingObserver) CallEnded(_ context.Context, s Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended = append(o.ended, s)
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Trigger == nil {
		cfg.Trigger = trigger.NewCadence(1)
	}
	if cfg.STT == nil {
		// Sessions stay open until the call ends.
		cfg.STT = &sttmock.Provider{}
	}
	m := NewManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m
}

func startCall(t *testing.T, m *Manager, mode Mode) *Call {
	t.Helper()
	c, err := m.Start(mode)
	if err != nil {
		t.Fatalf("Start(%s): %v", mode, err)
	}
	return c
}

func appendLine(t *testing.T, c *Call, speaker, text string) {
	t.Helper()
	if _, err := c.AppendUtterance(speaker, text); err != nil {
		t.Fatalf("AppendUtterance(%q): %v", text, err)
	}
}

func waitFor(t *testing.T, c *Call, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last snapshot: %+v", what, s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func scorecard(reasoning string, questions ...string) *meddpicc.Analysis {
	a := &meddpicc.Analysis{
		MEDDPICC: map[meddpicc.Area]meddpicc.AreaAssessment{
			meddpicc.Pain: {Status: meddpicc.Detected, Confidence: 0.8},
		},
		IntentConfidence: meddpicc.IntentConfidence{Level: meddpicc.LevelMedium, Reasoning: []string{reasoning}},
		Source:           meddpicc.SourceModel,
	}
	for _, q := range questions {
		a.SuggestedQuestions = append(a.SuggestedQuestions, meddpicc.SuggestedQuestion{
			Area: meddpicc.Champion, Priority: meddpicc.High, Question: q,
		})
	}
	a.Normalize()
	return a
}

func reasoning(s Snapshot) string {
	if s.Scorecard == nil || len(s.Scorecard.IntentConfidence.Reasoning) == 0 {
		return ""
	}
	return s.Scorecard.IntentConfidence.Reasoning[0]
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestCall_AppliesAnalysisResult(t *testing.T) {
	client := newFakeClient()
	obs := &recordingObserver{}
	m := newTestManager(t, Config{Client: client, Observers: []Observer{obs}})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "What problem are you solving?")
	p := client.next(t)
	if p.req.CallID != c.ID() || len(p.req.Transcript) != 1 {
		t.Fatalf("request = %+v", p.req)
	}
	p.reply <- result{a: scorecard("first", "Who is the champion?")}

	s := waitFor(t, c, "scorecard", func(s Snapshot) bool { return s.AppliedSeq == 1 })
	if reasoning(s) != "first" || s.Scorecard.Source != meddpicc.SourceModel {
		t.Errorf("scorecard = %+v", s.Scorecard)
	}
	if s.Seq != 1 || s.Analyzing || s.Error != "" {
		t.Errorf("snapshot = %+v", s)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.utterances) != 1 || len(obs.scorecards) != 1 {
		t.Errorf("observer saw %d utterances and %d scorecards, want 1 and 1", len(obs.utterances), len(obs.scorecards))
	}
}

func TestCall_DropsStaleResults(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "one")
	first := client.next(t)
	appendLine(t, c, "prospect", "two")
	second := client.next(t)

	second.reply <- result{a: scorecard("second")}
	waitFor(t, c, "second result", func(s Snapshot) bool { return s.AppliedSeq == 2 })

	first.reply <- result{a: scorecard("first")}
	s := waitFor(t, c, "first result to settle", func(s Snapshot) bool { return !s.Analyzing })
	if reasoning(s) != "second" || s.AppliedSeq != 2 {
		t.Errorf("stale result applied: reasoning=%q appliedSeq=%d", reasoning(s), s.AppliedSeq)
	}
}

func TestCall_LiveFailureKeepsScorecard(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "one")
	client.next(t).reply <- result{a: scorecard("kept")}
	waitFor(t, c, "first scorecard", func(s Snapshot) bool { return s.AppliedSeq == 1 })

	appendLine(t, c, "prospect", "two")
	client.next(t).reply <- result{err: &analysis.RequestError{StatusCode: 500}}
	s := waitFor(t, c, "error", func(s Snapshot) bool { return s.Error != "" })

	if s.Error != "Analysis failed - check API setup" {
		t.Errorf("error = %q", s.Error)
	}
	if reasoning(s) != "kept" || s.AppliedSeq != 1 {
		t.Errorf("scorecard changed after failure: %q (applied %d)", reasoning(s), s.AppliedSeq)
	}

	// The next successful cycle clears the error.
	appendLine(t, c, "rep", "three")
	client.next(t).reply <- result{a: scorecard("recovered")}
	s = waitFor(t, c, "recovery", func(s Snapshot) bool { return s.AppliedSeq == 3 })
	if s.Error != "" {
		t.Errorf("error not cleared: %q", s.Error)
	}
}

func TestCall_LiveParseFailureMessage(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "one")
	client.next(t).reply <- result{err: &analysis.ParseError{Raw: "Sure! Here is", Err: errors.New("invalid character 'S'")}}
	s := waitFor(t, c, "error", func(s Snapshot) bool { return s.Error != "" })

	if s.Error == "Analysis failed - check API setup" {
		t.Errorf("parse failure reported as a setup problem: %q", s.Error)
	}
	if !strings.Contains(s.Error, "could not be read") {
		t.Errorf("error = %q", s.Error)
	}
	if s.Scorecard != nil {
		t.Errorf("scorecard set after failed first cycle: %+v", s.Scorecard)
	}
}

func TestCall_DemoFailureFallsBackToHeuristic(t *testing.T) {
	client := newFakeClient()
	ticker := &manualTicker{ch: make(chan time.Time)}
	m := newTestManager(t, Config{
		Client: client,
		DemoOptions: []demo.Option{demo.WithTicker(func(time.Duration) demo.Ticker {
			return ticker
		})},
	})
	c := startCall(t, m, ModeDemo)

	ticker.tick(t)
	client.next(t).reply <- result{err: errors.New("connection refused")}
	s := waitFor(t, c, "heuristic scorecard", func(s Snapshot) bool { return s.AppliedSeq == 1 })

	if s.Scorecard.Source != meddpicc.SourceHeuristic {
		t.Errorf("source = %q, want heuristic", s.Scorecard.Source)
	}
	if s.Error != "" {
		t.Errorf("demo failure surfaced error %q", s.Error)
	}
	want := analysis.Heuristic(demo.Script[:1])
	if got := s.Scorecard.MEDDPICC[meddpicc.Pain]; got.Status != want.MEDDPICC[meddpicc.Pain].Status {
		t.Errorf("pain = %+v, want heuristic %+v", got, want.MEDDPICC[meddpicc.Pain])
	}
}

func TestCall_DemoEndsAfterScript(t *testing.T) {
	ticker := &manualTicker{ch: make(chan time.Time)}
	m := newTestManager(t, Config{
		Trigger: trigger.NewKeyword(nil, 0),
		DemoOptions: []demo.Option{demo.WithTicker(func(time.Duration) demo.Ticker {
			return ticker
		})},
	})
	c := startCall(t, m, ModeDemo)

	for range demo.Script {
		ticker.tick(t)
	}
	ticker.tick(t)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("demo call did not end after the script")
	}
	s := c.Snapshot()
	if !s.Ended || s.EndedAt == nil {
		t.Errorf("snapshot not ended: %+v", s)
	}
	if len(s.Transcript) != len(demo.Script) {
		t.Fatalf("transcript = %d lines, want %d", len(s.Transcript), len(demo.Script))
	}
	for i, u := range s.Transcript {
		if u != demo.Script[i] {
			t.Errorf("line %d = %+v, want %+v", i, u, demo.Script[i])
		}
	}
}

func TestCall_MarkAskedFiltersQuestions(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "one")
	client.next(t).reply <- result{a: scorecard("x", "Q1", "Q2", "Q3", "Q4", "Q5", "Q6")}
	s := waitFor(t, c, "scorecard", func(s Snapshot) bool { return s.AppliedSeq == 1 })
	if n := len(s.Scorecard.SuggestedQuestions); n != 5 {
		t.Fatalf("questions = %d, want capped at 5", n)
	}

	if err := c.MarkAsked(" Q2 "); err != nil {
		t.Fatalf("MarkAsked: %v", err)
	}
	s = c.Snapshot()
	if !slices.Equal(s.Asked, []string{"Q2"}) {
		t.Errorf("asked = %v", s.Asked)
	}
	// Q6 was held back by the cap and moves up once Q2 is asked.
	var got []string
	for _, q := range s.Scorecard.SuggestedQuestions {
		got = append(got, q.Question)
	}
	if want := []string{"Q1", "Q3", "Q4", "Q5", "Q6"}; !slices.Equal(got, want) {
		t.Errorf("questions after asking Q2 = %v, want %v", got, want)
	}

	// A later analysis suggesting Q2 again must not resurface it.
	appendLine(t, c, "prospect", "two")
	client.next(t).reply <- result{a: scorecard("y", "Q2", "Q7")}
	s = waitFor(t, c, "second scorecard", func(s Snapshot) bool { return s.AppliedSeq == 2 })
	if len(s.Scorecard.SuggestedQuestions) != 1 || s.Scorecard.SuggestedQuestions[0].Question != "Q7" {
		t.Errorf("questions = %+v, want only Q7", s.Scorecard.SuggestedQuestions)
	}

	if err := c.MarkAsked("  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("MarkAsked(blank) = %v, want ErrEmptyText", err)
	}
}

func TestCall_EndDiscardsInflightResult(t *testing.T) {
	client := newFakeClient()
	obs := &recordingObserver{}
	m := newTestManager(t, Config{Client: client, Observers: []Observer{obs}})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "one")
	p := client.next(t)

	final, err := c.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if !final.Ended || !final.Analyzing {
		t.Errorf("final snapshot = %+v", final)
	}
	p.reply <- result{a: scorecard("late")}

	time.Sleep(20 * time.Millisecond)
	if s := c.Snapshot(); s.Scorecard != nil {
		t.Errorf("late result applied after end: %+v", s.Scorecard)
	}
	if _, err := c.End(); !errors.Is(err, ErrCallEnded) {
		t.Errorf("second End = %v, want ErrCallEnded", err)
	}
	if _, err := c.AppendUtterance("rep", "after"); !errors.Is(err, ErrCallEnded) {
		t.Errorf("AppendUtterance after end = %v, want ErrCallEnded", err)
	}
	if err := c.MarkAsked("Q"); !errors.Is(err, ErrCallEnded) {
		t.Errorf("MarkAsked after end = %v, want ErrCallEnded", err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.ended) != 1 {
		t.Errorf("CallEnded fired %d times, want 1", len(obs.ended))
	}
}

func TestCall_TriggerPolicy(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client, Trigger: trigger.NewKeyword(nil, 3)})
	c := startCall(t, m, ModeLive)

	appendLine(t, c, "rep", "Hello there")
	client.none(t)
	appendLine(t, c, "prospect", "Our budget is tight")
	if p := client.next(t); len(p.req.Transcript) != 2 {
		t.Errorf("keyword request lines = %d, want 2", len(p.req.Transcript))
	}
	appendLine(t, c, "rep", "Tell me more")
	if p := client.next(t); len(p.req.Transcript) != 3 {
		t.Errorf("cadence request lines = %d, want 3", len(p.req.Transcript))
	}
}

func TestCall_RequestWindow(t *testing.T) {
	client := newFakeClient()
	m := newTestManager(t, Config{Client: client, Trigger: trigger.NewCadence(20), Window: 15})
	c := startCall(t, m, ModeLive)

	for i := 0; i < 20; i++ {
		appendLine(t, c, "rep", "line")
	}
	p := client.next(t)
	if len(p.req.Transcript) != 15 {
		t.Errorf("request lines = %d, want 15", len(p.req.Transcript))
	}
	if n := len(c.Snapshot().Transcript); n != 20 {
		t.Errorf("transcript = %d, want 20", n)
	}
}

func TestCall_LiveWithoutRecognizer(t *testing.T) {
	m := NewManager(Config{})
	defer func() { _ = m.Shutdown(context.Background()) }()
	c := startCall(t, m, ModeLive)

	s := waitFor(t, c, "capability error", func(s Snapshot) bool { return s.Error != "" })
	if !strings.Contains(s.Error, "not available") || s.Listening {
		t.Errorf("snapshot = %+v", s)
	}
	// The call itself stays usable.
	appendLine(t, c, "", "typed in by hand")
}

func TestCall_LiveSpeechWithCorrection(t *testing.T) {
	started := make(chan *sttmock.Session, 4)
	provider := &sttmock.Provider{OnStart: func(s *sttmock.Session) { started <- s }}
	base := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	m := newTestManager(t, Config{
		STT:              provider,
		Matcher:          phonetic.New(),
		Glossary:         []string{"Salesforce"},
		SilenceThreshold: 2 * time.Second,
		Now:              clock,
	})
	c := startCall(t, m, ModeLive)

	var sess *sttmock.Session
	select {
	case sess = <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("recognizer not started")
	}
	waitFor(t, c, "listening", func(s Snapshot) bool { return s.Listening })

	advance(500 * time.Millisecond)
	sess.FinalsCh <- types.Transcript{Text: "we run sales force today", IsFinal: true}
	s := waitFor(t, c, "first utterance", func(s Snapshot) bool { return len(s.Transcript) == 1 })
	u := s.Transcript[0]
	if u.Speaker != "Speaker 1" || u.Text != "we run Salesforce today" || u.RawText != "we run sales force today" {
		t.Errorf("utterance = %+v", u)
	}
	if u.Timestamp != 500*time.Millisecond {
		t.Errorf("timestamp = %v, want 500ms", u.Timestamp)
	}

	advance(3 * time.Second)
	sess.FinalsCh <- types.Transcript{Text: "interesting", IsFinal: true}
	s = waitFor(t, c, "second utterance", func(s Snapshot) bool { return len(s.Transcript) == 2 })
	if s.Transcript[1].Speaker != "Speaker 2" || s.Transcript[1].RawText != "" {
		t.Errorf("second utterance = %+v", s.Transcript[1])
	}

	if err := c.FeedRecognition(stt.RecognitionEvent{Type: "result", Text: "hi", Final: true}); err != nil {
		t.Errorf("FeedRecognition: %v", err)
	}
	if err := c.SendAudio([]byte{1, 2}); err != nil {
		t.Errorf("SendAudio: %v", err)
	}

	if _, err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := c.SendAudio([]byte{1}); !errors.Is(err, ErrCallEnded) {
		t.Errorf("SendAudio after end = %v, want ErrCallEnded", err)
	}
}

func TestCall_DemoRejectsAudio(t *testing.T) {
	ticker := &manualTicker{ch: make(chan time.Time)}
	m := newTestManager(t, Config{DemoOptions: []demo.Option{demo.WithTicker(func(time.Duration) demo.Ticker {
		return ticker
	})}})
	c := startCall(t, m, ModeDemo)
	if err := c.SendAudio([]byte{1}); !errors.Is(err, ErrNotLive) {
		t.Errorf("SendAudio = %v, want ErrNotLive", err)
	}
}

func TestCall_Subscribe(t *testing.T) {
	m := newTestManager(t, Config{})
	c := startCall(t, m, ModeLive)

	updates, cancel := c.Subscribe()
	defer cancel()
	first := <-updates
	if first.CallID != c.ID() {
		t.Fatalf("first snapshot = %+v", first)
	}

	appendLine(t, c, "rep", "hello")
	deadline := time.After(2 * time.Second)
	for seen := false; !seen; {
		select {
		case s := <-updates:
			seen = len(s.Transcript) == 1
		case <-deadline:
			t.Fatal("no snapshot with the appended line")
		}
	}

	if _, err := c.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	var last Snapshot
	for s := range updates {
		last = s
	}
	if !last.Ended {
		t.Errorf("last snapshot before close not ended: %+v", last)
	}

	late, _ := c.Subscribe()
	s, ok := <-late
	if !ok || !s.Ended {
		t.Errorf("subscription after end: ok=%v snapshot=%+v", ok, s)
	}
	if _, ok := <-late; ok {
		t.Error("subscription after end not closed")
	}
}
