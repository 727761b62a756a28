package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/demo"
	"github.com/MrWong99/closepath/internal/speech"
	"github.com/MrWong99/closepath/internal/transcript"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/provider/stt"
	"github.com/MrWong99/closepath/pkg/types"
)

// eventBuffer is the capacity of a call's event queue.
const eventBuffer = 64

// ── Events ───────────────────────────────────────────────────────────────────

type event interface{ isEvent() }

type utteranceFinal struct {
	u     types.Utterance
	reply chan struct{}
}

type demoDone struct{}

type analysisResult struct {
	seq  uint64
	a    *meddpicc.Analysis
	took time.Duration
}

type analysisError struct {
	seq      uint64
	err      error
	snapshot []types.Utterance
	took     time.Duration
}

type markAsked struct {
	question string
	reply    chan struct{}
}

type recognizerError struct{ err error }

type endCall struct{}

type snapshotRequest struct{ reply chan Snapshot }

type subscribe struct {
	ch    chan Snapshot
	reply chan uint64
}

type unsubscribe struct{ id uint64 }

func (utteranceFinal) isEvent()  {}
func (demoDone) isEvent()        {}
func (analysisResult) isEvent()  {}
func (analysisError) isEvent()   {}
func (markAsked) isEvent()       {}
func (recognizerError) isEvent() {}
func (endCall) isEvent()         {}
func (snapshotRequest) isEvent() {}
func (subscribe) isEvent()       {}
func (unsubscribe) isEvent()     {}

// ── Call ─────────────────────────────────────────────────────────────────────

// Call is one sales call. All exported methods are safe for concurrent use;
// state changes are serialised through the call's event loop.
type Call struct {
	id        string
	mode      Mode
	startedAt time.Time
	cfg       *Config
	log       *slog.Logger

	// analysisCtx is the manager's root context, not the call's, so requests
	// in flight at call end still finish. Their results are dropped.
	analysisCtx context.Context
	analyses    *sync.WaitGroup

	cancel  context.CancelFunc
	events  chan event
	done    chan struct{}
	seg     *speech.Segmenter
	adapter *speech.Adapter
	fixer   *transcript.Corrector

	// Owned by the event loop.
	store      *transcript.Store
	asked      map[string]struct{}
	askedOrder []string
	seq        uint64
	appliedSeq uint64
	inflight   int
	scorecard  *meddpicc.Analysis
	suggested  []meddpicc.SuggestedQuestion // unfiltered, from the last applied analysis
	lastErr    string
	ended      bool
	endedAt    time.Time
	subs       map[uint64]chan Snapshot
	nextSub    uint64

	finalMu sync.Mutex
	final   Snapshot
}

// newCall builds a call and starts its loop and transcript source.
func newCall(root context.Context, id string, mode Mode, cfg *Config, glossary []string, analyses *sync.WaitGroup) *Call {
	now := cfg.now()
	ctx, cancel := context.WithCancel(root)
	c := &Call{
		id:          id,
		mode:        mode,
		startedAt:   now,
		cfg:         cfg,
		log:         slog.With("call_id", id, "mode", string(mode)),
		analysisCtx: root,
		analyses:    analyses,
		cancel:      cancel,
		events:      make(chan event, eventBuffer),
		done:        make(chan struct{}),
		seg:         speech.NewSegmenter(now, cfg.SilenceThreshold),
		store:       transcript.NewStore(),
		asked:       make(map[string]struct{}),
		subs:        make(map[uint64]chan Snapshot),
	}
	if cfg.Matcher != nil && len(glossary) > 0 {
		c.fixer = transcript.NewCorrector(cfg.Matcher, glossary)
	}

	go c.loop()

	switch mode {
	case ModeDemo:
		feed := demo.New(cfg.DemoOptions...)
		go func() {
			err := feed.Run(ctx, func(u types.Utterance) {
				c.post(utteranceFinal{u: u})
			})
			if err == nil {
				c.post(demoDone{})
			}
		}()
	default:
		opts := []speech.AdapterOption{
			speech.WithTextFilter(c.correct),
			speech.WithStreamConfig(cfg.StreamConfig),
			speech.WithClock(cfg.now),
		}
		if cfg.RestartDelay > 0 {
			opts = append(opts, speech.WithRestartDelay(cfg.RestartDelay))
		}
		c.adapter = speech.NewAdapter(cfg.STT, c.seg, now, func(u types.Utterance) {
			c.post(utteranceFinal{u: u})
		}, opts...)
		go func() {
			if err := c.adapter.Run(ctx); err != nil {
				c.post(recognizerError{err: err})
			}
		}()
	}

	if cfg.Metrics != nil {
		cfg.Metrics.ActiveCalls.Add(ctx, 1)
	}
	c.log.Info("session: call started")
	return c
}

// ID returns the call id.
func (c *Call) ID() string { return c.id }

// Mode returns the call mode.
func (c *Call) Mode() Mode { return c.mode }

// Done is closed once the call has ended.
func (c *Call) Done() <-chan struct{} { return c.done }

// Snapshot returns the current state of the call.
func (c *Call) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	if c.post(snapshotRequest{reply: reply}) {
		select {
		case s := <-reply:
			return s
		case <-c.done:
		}
	}
	return c.finalSnapshot()
}

// AppendUtterance adds a final utterance pushed by a client. An empty speaker
// is attributed by the call's silence segmenter; text goes through the
// glossary corrector.
func (c *Call) AppendUtterance(speaker, text string) (types.Utterance, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Utterance{}, ErrEmptyText
	}
	now := c.cfg.now()
	u := types.Utterance{
		Speaker:   strings.TrimSpace(speaker),
		Timestamp: now.Sub(c.startedAt),
	}
	if u.Speaker == "" {
		u.Speaker = c.seg.Assign(now)
	}
	u.Text, u.RawText = c.correct(text)

	reply := make(chan struct{})
	if !c.post(utteranceFinal{u: u, reply: reply}) {
		return types.Utterance{}, ErrCallEnded
	}
	if !c.await(reply) {
		return types.Utterance{}, ErrCallEnded
	}
	return u, nil
}

// MarkAsked records question as asked. It is removed from the current
// suggestions and never suggested again during this call.
func (c *Call) MarkAsked(question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyText
	}
	reply := make(chan struct{})
	if !c.post(markAsked{question: question, reply: reply}) {
		return ErrCallEnded
	}
	if !c.await(reply) {
		return ErrCallEnded
	}
	return nil
}

// await waits for the loop to close reply. It reports false if the call
// ended before the request was handled.
func (c *Call) await(reply <-chan struct{}) bool {
	select {
	case <-reply:
		return true
	case <-c.done:
		select {
		case <-reply:
			return true
		default:
			return false
		}
	}
}

// SendAudio forwards raw audio to the live recognizer.
func (c *Call) SendAudio(chunk []byte) error {
	if err := c.liveCheck(); err != nil {
		return err
	}
	return c.adapter.SendAudio(chunk)
}

// FeedRecognition forwards a client-side recognition event to the live
// recognizer.
func (c *Call) FeedRecognition(ev stt.RecognitionEvent) error {
	if err := c.liveCheck(); err != nil {
		return err
	}
	return c.adapter.Feed(ev)
}

func (c *Call) liveCheck() error {
	select {
	case <-c.done:
		return ErrCallEnded
	default:
	}
	if c.adapter == nil {
		return ErrNotLive
	}
	return nil
}

// End stops the transcript source and freezes the call. Analyses still in
// flight are discarded when they complete. It returns [ErrCallEnded] if the
// call had already ended.
func (c *Call) End() (Snapshot, error) {
	if !c.post(endCall{}) {
		return c.finalSnapshot(), ErrCallEnded
	}
	<-c.done
	return c.finalSnapshot(), nil
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state. Slow readers only see the latest
// snapshot. The channel is closed after the final snapshot when the call
// ends, or when the returned cancel function is called.
func (c *Call) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	reply := make(chan uint64, 1)
	if !c.post(subscribe{ch: ch, reply: reply}) {
		return c.endedSubscription(), func() {}
	}
	var id uint64
	select {
	case id = <-reply:
	case <-c.done:
		select {
		case id = <-reply:
			// Registered before the end; the loop has closed ch.
			return ch, func() {}
		default:
			return c.endedSubscription(), func() {}
		}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() { c.post(unsubscribe{id: id}) })
	}
}

func (c *Call) endedSubscription() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	ch <- c.finalSnapshot()
	close(ch)
	return ch
}

// post queues ev for the loop. It reports false once the call has ended.
func (c *Call) post(ev event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Call) finalSnapshot() Snapshot {
	c.finalMu.Lock()
	defer c.finalMu.Unlock()
	return c.final
}

func (c *Call) correct(text string) (string, string) {
	if c.fixer == nil {
		return text, ""
	}
	fixed, corrections := c.fixer.Correct(text)
	if len(corrections) == 0 {
		return text, ""
	}
	return fixed, text
}

// ── Event loop ───────────────────────────────────────────────────────────────

func (c *Call) loop() {
	for ev := range c.events {
		switch ev := ev.(type) {
		case utteranceFinal:
			c.onUtterance(ev)
		case demoDone:
			c.log.Info("session: demo script finished")
			c.finish()
		case analysisResult:
			c.onResult(ev)
		case analysisError:
			c.onError(ev)
		case markAsked:
			c.onMarkAsked(ev)
		case recognizerError:
			c.onRecognizerError(ev.err)
		case endCall:
			c.finish()
		case snapshotRequest:
			ev.reply <- c.snapshot()
		case subscribe:
			c.nextSub++
			c.subs[c.nextSub] = ev.ch
			ev.ch <- c.snapshot()
			ev.reply <- c.nextSub
		case unsubscribe:
			if ch, ok := c.subs[ev.id]; ok {
				delete(c.subs, ev.id)
				close(ch)
			}
		}
		if c.ended {
			return
		}
	}
}

func (c *Call) onUtterance(ev utteranceFinal) {
	if ev.reply != nil {
		defer close(ev.reply)
	}
	n := c.store.Append(ev.u)
	if m := c.cfg.Metrics; m != nil {
		m.RecordUtterance(context.Background(), string(c.mode))
	}
	for _, o := range c.cfg.Observers {
		o.UtteranceAppended(context.Background(), c.id, ev.u)
	}
	if c.cfg.Trigger != nil && c.cfg.Trigger.ShouldAnalyze(n, ev.u) {
		c.requestAnalysis()
	}
	c.publish()
}

// requestAnalysis issues request seq+1 for the current transcript.
func (c *Call) requestAnalysis() {
	if c.cfg.Client == nil {
		return
	}
	c.seq++
	seq := c.seq
	snap := c.store.Snapshot()
	req := analysis.BuildRequest(c.id, snap, c.cfg.now(), c.cfg.Window)
	c.inflight++
	c.log.Debug("session: analysis requested", "seq", seq, "lines", len(req.Transcript))

	c.analyses.Add(1)
	go func() {
		defer c.analyses.Done()
		start := time.Now()
		a, err := c.cfg.Client.Analyze(c.analysisCtx, req)
		took := time.Since(start)
		if err != nil {
			c.post(analysisError{seq: seq, err: err, snapshot: snap, took: took})
			return
		}
		c.post(analysisResult{seq: seq, a: a, took: took})
	}()
}

func (c *Call) stale(seq uint64) bool {
	return seq <= c.appliedSeq
}

func (c *Call) onResult(ev analysisResult) {
	c.inflight--
	if c.stale(ev.seq) {
		c.log.Debug("session: dropping stale analysis", "seq", ev.seq, "applied_seq", c.appliedSeq)
		c.publish()
		return
	}
	c.apply(ev.seq, ev.a)
	if m := c.cfg.Metrics; m != nil {
		m.RecordAnalysis(context.Background(), string(c.scorecard.Source), "ok", ev.took.Seconds())
	}
	c.publish()
}

func (c *Call) onError(ev analysisError) {
	c.inflight--
	if m := c.cfg.Metrics; m != nil {
		m.RecordAnalysis(context.Background(), string(meddpicc.SourceModel), "error", ev.took.Seconds())
	}
	if c.stale(ev.seq) {
		c.publish()
		return
	}
	c.log.Warn("session: analysis failed", "seq", ev.seq, "err", ev.err)

	if c.mode == ModeLive {
		c.lastErr = msgAnalysisFailed
		var pe *analysis.ParseError
		if errors.As(ev.err, &pe) {
			c.lastErr = msgAnalysisUnreadable
			c.log.Debug("session: unparseable analysis reply", "seq", ev.seq, "raw", pe.Raw)
		}
		c.publish()
		return
	}
	h := analysis.Heuristic(ev.snapshot)
	if m := c.cfg.Metrics; m != nil {
		m.RecordFallback(context.Background(), fallbackReason(ev.err))
	}
	c.apply(ev.seq, h)
	c.publish()
}

func fallbackReason(err error) string {
	if errors.Is(err, analysis.ErrParse) {
		return "parse"
	}
	return "request"
}

// apply replaces the scorecard wholesale with a, filtered against the asked set.
func (c *Call) apply(seq uint64, a *meddpicc.Analysis) {
	sc := a.Clone()
	c.suggested = sc.SuggestedQuestions
	sc.SuggestedQuestions = analysis.FilterQuestions(c.suggested, c.asked, c.cfg.MaxQuestions)
	c.scorecard = sc
	c.appliedSeq = seq
	c.lastErr = ""
	snap := c.snapshot()
	for _, o := range c.cfg.Observers {
		o.ScorecardUpdated(context.Background(), snap)
	}
}

func (c *Call) onMarkAsked(ev markAsked) {
	defer close(ev.reply)
	if _, ok := c.asked[ev.question]; !ok {
		c.asked[ev.question] = struct{}{}
		c.askedOrder = append(c.askedOrder, ev.question)
	}
	if c.scorecard != nil {
		c.scorecard.SuggestedQuestions = analysis.FilterQuestions(c.suggested, c.asked, c.cfg.MaxQuestions)
	}
	c.publish()
}

func (c *Call) onRecognizerError(err error) {
	switch {
	case errors.Is(err, speech.ErrCapabilityMissing):
		c.lastErr = msgSpeechUnavailable
	case errors.Is(err, speech.ErrPermissionDenied):
		c.lastErr = msgMicDenied
	default:
		c.lastErr = fmt.Sprintf(msgSpeechFailed, err)
	}
	c.log.Warn("session: speech recognition stopped", "err", err)
	c.publish()
}

// finish ends the call: stops the adapter and demo feed, publishes the final
// snapshot and closes all subscriptions.
func (c *Call) finish() {
	if c.ended {
		return
	}
	c.ended = true
	c.endedAt = c.cfg.now()
	c.cancel()

	snap := c.snapshot()
	c.finalMu.Lock()
	c.final = snap
	c.finalMu.Unlock()

	for _, o := range c.cfg.Observers {
		o.CallEnded(context.Background(), snap)
	}
	c.publish()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveCalls.Add(context.Background(), -1)
	}
	c.log.Info("session: call ended",
		"utterances", c.store.Len(),
		"analyses", c.seq,
		"duration", c.endedAt.Sub(c.startedAt).Round(time.Millisecond).String())
	close(c.done)
}

// publish sends the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (c *Call) publish() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Call) snapshot() Snapshot {
	s := Snapshot{
		CallID:     c.id,
		Mode:       c.mode,
		StartedAt:  c.startedAt,
		Ended:      c.ended,
		Listening:  !c.ended && c.adapter != nil && c.adapter.Listening(),
		Analyzing:  c.inflight > 0,
		Transcript: c.store.Snapshot(),
		Scorecard:  c.scorecard.Clone(),
		Asked:      append([]string{}, c.askedOrder...),
		Error:      c.lastErr,
		Seq:        c.seq,
		AppliedSeq: c.appliedSeq,
	}
	if c.ended {
		t := c.endedAt
		s.EndedAt = &t
	}
	return s
}
