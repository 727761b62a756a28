package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/closepath/pkg/meddpicc"
	"github.com/MrWong99/closepath/pkg/provider/llm"
)

var (
	// ErrRequestFailed covers transport failures and non-success responses.
	ErrRequestFailed = errors.New("analysis: request failed")

	// ErrParse means a response arrived but was not a valid analysis.
	ErrParse = errors.New("analysis: invalid analysis response")
)

// RequestError is a non-success HTTP answer from the analysis endpoint or an
// upstream model API.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("analysis: request failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error { return ErrRequestFailed }

// ParseError carries the text that could not be decoded.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis: parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// Client obtains a scorecard for a request.
//
// Errors wrap [ErrRequestFailed] or [ErrParse].
type Client interface {
	Analyze(ctx context.Context, req Request) (*meddpicc.Analysis, error)
}

// ── HTTP ──────────────────────────────────────────────────────────────────────

const defaultHTTPTimeout = 60 * time.Second

// HTTPOption configures an [HTTPClient].
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

// HTTPClient posts requests to a remote /api/analyze endpoint.
type HTTPClient struct {
	endpoint string
	hc       *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the endpoint URL.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze implements [Client].
func (c *HTTPClient) Analyze(ctx context.Context, req Request) (*meddpicc.Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("analysis: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	a, err := meddpicc.Parse(raw)
	if err != nil {
		return nil, &ParseError{Raw: string(raw), Err: err}
	}
	if a.Source == "" {
		a.Source = meddpicc.SourceModel
	}
	return a, nil
}

// ── In-process ────────────────────────────────────────────────────────────────

// Analyzer is the transport-free analysis core.
type Analyzer interface {
	Analyze(ctx context.Context, callID string, lines []Line, at time.Time) (*meddpicc.Analysis, error)
}

// LocalClient calls an [Analyzer] in the same process. Its errors follow the
// same taxonomy as [HTTPClient].
type LocalClient struct {
	analyzer Analyzer
}

var _ Client = (*LocalClient)(nil)

// NewLocalClient wraps a.
func NewLocalClient(a Analyzer) *LocalClient {
	return &LocalClient{analyzer: a}
}

// Analyze implements [Client].
func (c *LocalClient) Analyze(ctx context.Context, req Request) (*meddpicc.Analysis, error) {
	a, err := c.analyzer.Analyze(ctx, req.CallID, req.Transcript, req.Timestamp)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, ErrParse) || errors.Is(err, ErrRequestFailed) {
		return nil, err
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return nil, &RequestError{StatusCode: apiErr.StatusCode, Body: apiErr.Body}
	}
	return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
}
