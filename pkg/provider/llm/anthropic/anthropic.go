// Package anthropic provides an LLM provider backed by the Anthropic Messages API.
//
// It is the default analysis backend: the call analyzer sends one system prompt
// and one user turn per request and reads back the concatenated text blocks.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MrWong99/closepath/pkg/provider/llm"
	"github.com/MrWong99/closepath/pkg/types"
)

// DefaultModel is used when the configuration leaves the model empty.
const DefaultModel = "claude-sonnet-4-20250514"

// defaultMaxTokens is sent when a request leaves MaxTokens at zero; the
// Messages API requires the field.
const defaultMaxTokens = 2000

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client sdk.Client
	model  string
}

type config struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the SDK retries rate-limited or 5xx responses.
// Negative values keep the SDK default.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// New constructs a new Anthropic LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{client: sdk.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("anthropic: messages: %w", &llm.APIError{
				Provider:   "anthropic",
				StatusCode: apiErr.StatusCode,
				Body:       apiErr.RawJSON(),
			})
		}
		return nil, fmt.Errorf("anthropic: messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &llm.CompletionResponse{
		Content: sb.String(),
		Usage: llm.Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}, nil
}

// CountTokens implements llm.Provider with a local estimate.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	caps := types.ModelCapabilities{
		ContextWindow:   200_000,
		MaxOutputTokens: 8_192,
	}
	lower := strings.ToLower(p.model)
	switch {
	case strings.Contains(lower, "opus-4"):
		caps.MaxOutputTokens = 32_000
	case strings.Contains(lower, "sonnet-4"), strings.Contains(lower, "3-7-sonnet"):
		caps.MaxOutputTokens = 64_000
	case strings.Contains(lower, "claude-3-opus"), strings.Contains(lower, "claude-3-haiku"):
		caps.MaxOutputTokens = 4_096
	}
	return caps
}

// buildParams converts a CompletionRequest into Messages API params. A
// "system" message in the history is folded into the system blocks because
// the API only accepts user and assistant turns.
func (p *Provider) buildParams(req llm.CompletionRequest) (sdk.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: int64(maxTokens),
	}
	if req.SystemPrompt != "" {
		params.System = append(params.System, sdk.TextBlockParam{Text: req.SystemPrompt})
	}
	if req.Temperature != 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case "user":
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case "assistant":
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			return sdk.MessageNewParams{}, fmt.Errorf("unknown message role %q", m.Role)
		}
	}
	if len(params.Messages) == 0 {
		return sdk.MessageNewParams{}, fmt.Errorf("at least one user message is required")
	}
	return params, nil
}

var _ llm.Provider = (*Provider)(nil)
