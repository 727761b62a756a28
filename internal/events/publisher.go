// Package events publishes call activity as JSON events to Kafka.
//
// A [Publisher] implements [session.Observer]. Events are queued without
// blocking the call loop and written by a background goroutine. When Kafka
// is disabled the publisher only logs what it would have sent.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/session"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/types"
)

// Event types.
const (
	TypeUtteranceAppended = "utterance.appended"
	TypeScorecardUpdated  = "scorecard.updated"
	TypeCallEnded         = "call.ended"
)

const (
	defaultTopic        = "closepath.calls"
	defaultBuffer       = 256
	defaultWriteTimeout = 10 * time.Second
)

// Writer is the subset of [*kafka.Writer] the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds the Kafka settings.
type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// Event is the envelope written to Kafka.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	CallID string    `json:"callId"`
	At     time.Time `json:"at"`
	Data   any       `json:"data"`
}

// UtteranceData is the payload of [TypeUtteranceAppended].
type UtteranceData struct {
	Speaker     string `json:"speaker"`
	Text        string `json:"text"`
	RawText     string `json:"rawText,omitempty"`
	TimestampMS int64  `json:"timestampMs"`
}

// ScorecardData is the payload of [TypeScorecardUpdated].
type ScorecardData struct {
	Seq       uint64             `json:"seq"`
	Source    meddpicc.Source    `json:"source"`
	Level     meddpicc.Level     `json:"level"`
	Action    meddpicc.Action    `json:"action"`
	Scorecard *meddpicc.Analysis `json:"scorecard"`
}

// EndedData is the payload of [TypeCallEnded].
type EndedData struct {
	Mode       session.Mode       `json:"mode"`
	StartedAt  time.Time          `json:"startedAt"`
	EndedAt    *time.Time         `json:"endedAt,omitempty"`
	Utterances int                `json:"utterances"`
	Asked      []string           `json:"askedQuestions"`
	Scorecard  *meddpicc.Analysis `json:"scorecard,omitempty"`
}

// Option configures a [Publisher].
type Option func(*Publisher)

// WithWriter replaces the Kafka writer built from [Config]. Mainly for tests.
func WithWriter(w Writer) Option {
	return func(p *Publisher) { p.writer = w }
}

// WithMetrics records publish outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithBuffer sets the queue capacity. Events beyond it are dropped.
func WithBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = n
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// Publisher turns call notifications into Kafka messages.
type Publisher struct {
	writer  Writer
	brokers []string
	topic   string
	buffer  int
	metrics *observe.Metrics
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	typ string
	msg kafka.Message
}

var _ session.Observer = (*Publisher)(nil)

// New returns a running Publisher. A disabled config, or one without brokers,
// yields a log-only publisher unless [WithWriter] supplies a writer.
func New(cfg Config, opts ...Option) *Publisher {
	p := &Publisher{
		brokers: cfg.Brokers,
		topic:   cfg.Topic,
		buffer:  defaultBuffer,
		now:     time.Now,
	}
	if p.topic == "" {
		p.topic = defaultTopic
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.writer == nil && cfg.Enabled && len(cfg.Brokers) > 0 {
		dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        p.topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: defaultWriteTimeout,
			RequiredAcks: kafka.RequireOne,
			Transport:    &kafka.Transport{Dial: dialer.DialFunc},
		}
		slog.Info("events: kafka publisher initialised", "brokers", cfg.Brokers, "topic", p.topic)
	} else if p.writer == nil {
		slog.Info("events: kafka disabled, logging events only")
	}

	p.queue = make(chan queued, p.buffer)
	p.done = make(chan struct{})
	go p.run()
	return p
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Ping dials the first reachable broker. A log-only publisher is always
// healthy.
func (p *Publisher) Ping(ctx context.Context) error {
	if p.writer == nil || len(p.brokers) == 0 {
		return nil
	}
	var errs []error
	for _, b := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("events: no broker reachable: %w", errors.Join(errs...))
}

// UtteranceAppended implements [session.Observer].
func (p *Publisher) UtteranceAppended(ctx context.Context, callID string, u types.Utterance) {
	p.enqueue(ctx, TypeUtteranceAppended, callID, UtteranceData{
		Speaker:     u.Speaker,
		Text:        u.Text,
		RawText:     u.RawText,
		TimestampMS: u.Timestamp.Milliseconds(),
	})
}

// ScorecardUpdated implements [session.Observer].
func (p *Publisher) ScorecardUpdated(ctx context.Context, s session.Snapshot) {
	if s.Scorecard == nil {
		return
	}
	p.enqueue(ctx, TypeScorecardUpdated, s.CallID, ScorecardData{
		Seq:       s.AppliedSeq,
		Source:    s.Scorecard.Source,
		Level:     s.Scorecard.IntentConfidence.Level,
		Action:    s.Scorecard.RecommendedNextAction.Action,
		Scorecard: s.Scorecard,
	})
}

// CallEnded implements [session.Observer].
func (p *Publisher) CallEnded(ctx context.Context, s session.Snapshot) {
	p.enqueue(ctx, TypeCallEnded, s.CallID, EndedData{
		Mode:       s.Mode,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Utterances: len(s.Transcript),
		Asked:      s.Asked,
		Scorecard:  s.Scorecard,
	})
}

func (p *Publisher) enqueue(ctx context.Context, typ, callID string, data any) {
	ev := Event{
		ID:     uuid.NewString(),
		Type:   typ,
		CallID: callID,
		At:     p.now().UTC(),
		Data:   data,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("events: marshal event", "type", typ, "call_id", callID, "err", err)
		p.metrics.RecordEvent(ctx, typ, "error")
		return
	}

	if p.writer == nil {
		slog.Debug("events: event", "type", typ, "call_id", callID, "payload", string(payload))
		p.metrics.RecordEvent(ctx, typ, "logged")
		return
	}

	msg := kafka.Message{
		Key:   []byte(callID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(typ)},
			{Key: "eventId", Value: []byte(ev.ID)},
		},
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.metrics.RecordEvent(ctx, typ, "dropped")
		return
	}
	select {
	case p.queue <- queued{typ: typ, msg: msg}:
	default:
		slog.Warn("events: queue full, dropping event", "type", typ, "call_id", callID)
		p.metrics.RecordEvent(ctx, typ, "dropped")
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for q := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		err := p.writer.WriteMessages(ctx, q.msg)
		cancel()
		if err != nil {
			slog.Error("events: write to kafka", "type", q.typ, "key", string(q.msg.Key), "err", err)
			p.metrics.RecordEvent(context.Background(), q.typ, "error")
			continue
		}
		p.metrics.RecordEvent(context.Background(), q.typ, "ok")
	}
}

// Close stops accepting events, drains the queue and closes the writer. If
// ctx expires first the remaining events are abandoned.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	var errs []error
	select {
	case <-p.done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("events: drain: %w", ctx.Err()))
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close writer: %w", err))
		}
	}
	return errors.Join(errs...)
}
