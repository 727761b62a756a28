// Package mcpserver exposes ClosePath analysis as Model Context Protocol tools
// so that agents can score transcripts and read live call scorecards.
//
// Three tools are registered:
//   - "analyze_transcript" runs the configured analyzer on a transcript.
//   - "score_transcript" scores a transcript offline with the keyword heuristic.
//   - "call_scorecard" returns the Markdown report of a running or recent call.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/closepath/internal/analysis"
	"github.com/MrWong99/closepath/internal/export"
	"github.com/MrWong99/closepath/internal/observe"
	"github.com/MrWong99/closepath/internal/session"
	"github.com/MrWong99/closepath/pkg/types"
)

// Tool names.
const (
	ToolAnalyze   = "analyze_transcript"
	ToolScore     = "score_transcript"
	ToolScorecard = "call_scorecard"
)

// CallLookup finds calls by id. [*session.Manager] satisfies it.
type CallLookup interface {
	Get(id string) (*session.Call, error)
}

var errEmptyTranscript = errors.New("mcpserver: transcript is empty")

type analyzeArgs struct {
	CallID     string          `json:"call_id,omitempty" jsonschema:"optional call id echoed into the prompt"`
	Transcript []analysis.Line `json:"transcript" jsonschema:"ordered transcript lines with speaker and text"`
}

type scoreArgs struct {
	Transcript []analysis.Line `json:"transcript" jsonschema:"ordered transcript lines with speaker and text"`
}

type scorecardArgs struct {
	CallID string `json:"call_id" jsonschema:"id of the call, as returned by POST /api/calls"`
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics records tool calls on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock replaces time.Now for analysis and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server owns the MCP server and its tool handlers.
type Server struct {
	analyzer analysis.Analyzer
	calls    CallLookup
	metrics  *observe.Metrics
	now      func() time.Time
	version  string

	mcp *mcpsdk.Server
}

// New registers the tools on a fresh MCP server. calls may be nil, in which
// case "call_scorecard" is not offered.
func New(a analysis.Analyzer, calls CallLookup, opts ...Option) *Server {
	s := &Server{
		analyzer: a,
		calls:    calls,
		now:      time.Now,
		version:  "dev",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{Name: "closepath", Version: s.version}, nil)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolAnalyze,
		Description: "Analyse a sales-call transcript and return a MEDDPICC scorecard with suggested questions, intent confidence and a recommended next action as JSON.",
	}, s.analyze)
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        ToolScore,
		Description: "Score a sales-call transcript offline with keyword rules. Fast, no model call; returns a MEDDPICC scorecard as JSON.",
	}, s.score)
	if calls != nil {
		mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
			Name:        ToolScorecard,
			Description: "Return the Markdown report (scorecard, questions and transcript) of a ClosePath call.",
		}, s.scorecard)
	}
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcpsdk.Server { return s.mcp }

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.mcp }, nil)
}

// ── Handlers ──────────────────────────────────────────────────────────────────

func (s *Server) analyze(ctx context.Context, _ *mcpsdk.CallToolRequest, in analyzeArgs) (*mcpsdk.CallToolResult, any, error) {
	if len(in.Transcript) == 0 {
		return s.fail(ctx, ToolAnalyze, errEmptyTranscript)
	}
	a, err := s.analyzer.Analyze(ctx, in.CallID, in.Transcript, s.now())
	if err != nil {
		return s.fail(ctx, ToolAnalyze, fmt.Errorf("mcpserver: analyze: %w", err))
	}
	return s.jsonResult(ctx, ToolAnalyze, a)
}

func (s *Server) score(ctx context.Context, _ *mcpsdk.CallToolRequest, in scoreArgs) (*mcpsdk.CallToolResult, any, error) {
	if len(in.Transcript) == 0 {
		return s.fail(ctx, ToolScore, errEmptyTranscript)
	}
	utts := make([]types.Utterance, 0, len(in.Transcript))
	for _, l := range in.Transcript {
		utts = append(utts, types.Utterance{Speaker: l.Speaker, Text: l.Text})
	}
	return s.jsonResult(ctx, ToolScore, analysis.Heuristic(utts))
}

func (s *Server) scorecard(ctx context.Context, _ *mcpsdk.CallToolRequest, in scorecardArgs) (*mcpsdk.CallToolResult, any, error) {
	id := strings.TrimSpace(in.CallID)
	c, err := s.calls.Get(id)
	if err != nil {
		return s.fail(ctx, ToolScorecard, err)
	}
	md, err := export.Markdown(export.NewReport(c.Snapshot(), s.now()))
	if err != nil {
		return s.fail(ctx, ToolScorecard, err)
	}
	s.metrics.RecordToolCall(ctx, ToolScorecard, "ok")
	return textResult(string(md)), nil, nil
}

func (s *Server) jsonResult(ctx context.Context, tool string, v any) (*mcpsdk.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return s.fail(ctx, tool, fmt.Errorf("mcpserver: encode result: %w", err))
	}
	s.metrics.RecordToolCall(ctx, tool, "ok")
	return textResult(string(b)), nil, nil
}

// fail reports err to the client as a tool error.
func (s *Server) fail(ctx context.Context, tool string, err error) (*mcpsdk.CallToolResult, any, error) {
	s.metrics.RecordToolCall(ctx, tool, "error")
	observe.Logger(ctx).Warn("mcpserver: tool failed", "tool", tool, "err", err)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, nil, nil
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}}}
}
