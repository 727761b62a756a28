// Package analyzer is the server side of transcript analysis: it prompts an
// LLM with the recent transcript and turns the reply into a MEDDPICC
// scorecard. Without an LLM it serves the fixed demo scorecard.
//
// [Service] is the transport-free core shared by the /api/analyze [Handler],
// the in-process analysis client and the MCP tools.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/provider/llm"
	"github.com/MrWong99/closepath/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxTokens caps the completion length of one analysis.
const DefaultMaxTokens = 2000

// Option configures a [Service].
type Option func(*Service)

// WithMaxTokens overrides [DefaultMaxTokens]. Non-positive values are ignored.
func WithMaxTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithMaxQuestions sets how many questions the prompt asks for.
func WithMaxQuestions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxQuestions = n
		}
	}
}

// WithMetrics records LLM latency and outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithProviderName sets the provider label used on metrics. Default: "llm".
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// WithClock replaces time.Now for requests that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service analyses transcripts. It is safe for concurrent use.
type Service struct {
	llm          llm.Provider
	maxTokens    int
	maxQuestions int
	providerName string
	metrics      *observe.Metrics
	now          func() time.Time
}

var _ analysis.Analyzer = (*Service)(nil)

// New returns a Service backed by p. A nil p puts the service in demo mode.
func New(p llm.Provider, opts ...Option) *Service {
	s := &Service{
		llm:          p,
		maxTokens:    DefaultMaxTokens,
		maxQuestions: analysis.DefaultMaxQuestions,
		providerName: "llm",
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Demo reports whether the service has no LLM and serves the demo scorecard.
func (s *Service) Demo() bool { return s.llm == nil }

// Analyze implements [analysis.Analyzer].
//
// Upstream HTTP failures come back wrapping *llm.APIError and unparsable
// replies as *analysis.ParseError.
func (s *Service) Analyze(ctx context.Context, callID string, lines []analysis.Line, at time.Time) (*meddpicc.Analysis, error) {
	if s.llm == nil {
		slog.Debug("analyzer: no llm configured, serving demo scorecard", "call_id", callID)
		return meddpicc.DemoAnalysis(), nil
	}
	if at.IsZero() {
		at = s.now()
	}

	ctx, span := observe.StartCallSpan(ctx, "analyzer.analyze", callID,
		trace.WithAttributes(attribute.Int("closepath.lines", len(lines))))
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: UserPrompt(callID, lines, at, s.maxQuestions)},
		},
		MaxTokens: s.maxTokens,
	}

	start := time.Now()
	resp, err := s.llm.Complete(ctx, req)
	if s.metrics != nil {
		s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete")
		s.record(ctx, "error")
		if s.metrics != nil {
			s.metrics.RecordProviderError(ctx, s.providerName, "llm")
		}
		return nil, fmt.Errorf("analyzer: complete: %w", err)
	}

	text := StripFences(resp.Content)
	a, err := meddpicc.Parse([]byte(text))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse")
		s.record(ctx, "parse_error")
		observe.Logger(ctx).Error("analyzer: model reply is not valid JSON",
			"err", err, "raw", text)
		return nil, &analysis.ParseError{Raw: text, Err: err}
	}
	a.Source = meddpicc.SourceModel
	s.record(ctx, "ok")

	observe.Logger(ctx).Debug("analyzer: scorecard ready",
		"lines", len(lines),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return a, nil
}

func (s *Service) record(ctx context.Context, status string) {
	if s.metrics != nil {
		s.metrics.RecordProviderRequest(ctx, s.providerName, "llm", status)
	}
}
