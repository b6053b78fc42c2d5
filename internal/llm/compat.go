package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// CompatClient talks to OpenAI-compatible chat endpoints (local model servers and proxies)
// that support JSON mode but not schema-constrained output.
type CompatClient struct {
	client llms.Model
	model  string
}

// NewCompatClient creates a client for an OpenAI-compatible endpoint.
// Local services often accept any token, so an empty apiKey is sent as "none".
func NewCompatClient(baseURL, apiKey, model string) (*CompatClient, error) {
	if baseURL == "" {
		return nil, errors.New("compat provider requires a base URL")
	}
	if model == "" {
		return nil, errors.New("compat provider requires a model name")
	}
	if apiKey == "" {
		apiKey = "none"
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compat client: %w", err)
	}

	return &CompatClient{client: client, model: model}, nil
}

// Name returns the provider name.
func (c *CompatClient) Name() string {
	return string(ProviderCompat)
}

// Complete sends a completion request in JSON mode.
func (c *CompatClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	system := req.System
	instruction, err := schemaInstruction(req.Schema)
	if err != nil {
		return nil, err
	}
	if instruction != "" {
		system += "\n\n" + instruction
	}

	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if system != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	for _, msg := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if msg.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Schema != nil {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := c.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if choice.Content == "" {
		return nil, ErrEmptyResponse
	}
	out := &CompletionResponse{
		Content:    choice.Content,
		Model:      c.model,
		StopReason: choice.StopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}
	if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
		out.TokensIn = v
	}
	if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
		out.TokensOut = v
	}
	return out, nil
}
