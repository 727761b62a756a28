// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., Anthropic Claude,
// OpenAI GPT-4o, or a local Ollama instance) and exposes a uniform interface
// that the call analyzer uses to score transcripts without coupling to any
// specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"fmt"

	"github.com/MrWong99/closepath/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
// All counts are in the model's native token unit and may differ between providers
// for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages and system
	// prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages must
// be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is typically
	// from the "user" role and drives the response.
	Messages []types.Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero means
	// use the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history. Providers without a dedicated system field prepend it
	// as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must return promptly when ctx is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// When the backend answers with an HTTP error the returned error wraps an
	// *APIError so callers can relay the upstream status.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens that the given message list would
	// consume in the model's context window. The result need not be exact but
	// should not undercount.
	CountTokens(messages []types.Message) (int, error)

	// Capabilities returns static metadata describing what this provider's underlying
	// model supports.
	Capabilities() types.ModelCapabilities
}

// APIError is an HTTP-level failure reported by an LLM backend.
type APIError struct {
	// Provider names the backend that failed ("anthropic", "openai", ...).
	Provider string

	// StatusCode is the HTTP status returned by the backend.
	StatusCode int

	// Body is the raw error payload, if any.
	Body string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: api error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: api error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// EstimateTokens is the ~4 characters per token approximation shared by
// providers that have no tokenizer endpoint.
func EstimateTokens(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		// role + formatting overhead
		total += 4
	}
	return total
}
