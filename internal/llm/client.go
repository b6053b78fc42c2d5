// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrEmptyResponse is returned when a provider answers without any text content.
var ErrEmptyResponse = errors.New("empty completion response")

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64

	// Schema, when set, asks the provider for JSON output conforming to it.
	Schema *ResponseSchema
}

// ResponseSchema names a JSON Schema for structured output.
type ResponseSchema struct {
	Name        string
	Description string
	Definition  *jsonschema.Definition
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderCompat    Provider = "compat"
)

// Options configures a provider client.
type Options struct {
	Provider Provider
	APIKey   string
	BaseURL  string
	Model    string
}

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	switch Provider(strings.ToLower(string(opts.Provider))) {
	case ProviderOpenAI:
		return NewOpenAIClient(opts.APIKey, opts.BaseURL, opts.Model)
	case ProviderAnthropic:
		return NewAnthropicClient(opts.APIKey, opts.BaseURL, opts.Model)
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.APIKey, opts.Model)
	case ProviderCompat:
		return NewCompatClient(opts.BaseURL, opts.APIKey, opts.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

// outputLimit is the largest completion budget a model family accepts.
type outputLimit struct {
	prefix string
	tokens int
}

// completionBudget resolves the max-token value sent for model. A requested
// budget of zero takes the model's limit, or fallback when the model is not
// listed; a budget above a known limit is lowered to it.
func completionBudget(limits []outputLimit, model string, requested, fallback int) int {
	limit := 0
	for _, l := range limits {
		if strings.HasPrefix(model, l.prefix) {
			limit = l.tokens
			break
		}
	}
	switch {
	case requested <= 0 && limit > 0:
		return limit
	case requested <= 0:
		return fallback
	case limit > 0 && requested > limit:
		return limit
	default:
		return requested
	}
}

// schemaInstruction renders a schema as an instruction for providers without native schema support.
func schemaInstruction(s *ResponseSchema) (string, error) {
	if s == nil || s.Definition == nil {
		return "", nil
	}
	raw, err := json.Marshal(s.Definition)
	if err != nil {
		return "", fmt.Errorf("failed to encode response schema: %w", err)
	}
	return fmt.Sprintf("Respond with a single JSON object named %s that conforms to this JSON Schema, with no surrounding text:\n%s", s.Name, raw), nil
}
