// Package extract turns raw conversation records into structured datasets
// by delegating to a language-model provider.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/llm"
	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
	"github.com/capitalize-ai/vcon-datasets/pkg/metrics"
)

var (
	// ErrExtraction is returned when the extraction service fails or answers off-schema.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmptyText is returned when there is no record text to extract from.
	ErrEmptyText = errors.New("record text is empty")
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 120 * time.Second

// Extractor produces a ConversationDataset from raw conversation text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*model.ConversationDataset, error)
}

// LLMExtractor implements Extractor on top of an llm.Client.
// It is safe for concurrent use when the underlying client is.
type LLMExtractor struct {
	client    llm.Client
	timeout   time.Duration
	maxTokens int
	logger    *logger.Logger
}

// Option configures an LLMExtractor.
type Option func(*LLMExtractor)

// WithTimeout overrides DefaultTimeout. Non-positive values disable the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *LLMExtractor) {
		e.timeout = d
	}
}

// WithMaxTokens sets the completion token budget. Zero, the default, leaves
// the budget to the provider.
func WithMaxTokens(n int) Option {
	return func(e *LLMExtractor) {
		e.maxTokens = n
	}
}

// NewLLMExtractor creates an extractor for the given provider client.
func NewLLMExtractor(client llm.Client, log *logger.Logger, opts ...Option) (*LLMExtractor, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	e := &LLMExtractor{
		client:  client,
		timeout: DefaultTimeout,
		logger:  log.Named("extract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract sends text to the provider once and parses the reply. It does not retry.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*model.ConversationDataset, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, ErrEmptyText)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, &llm.CompletionRequest{
		System:    systemPrompt,
		Messages:  []llm.ChatMessage{{Role: "user", Content: text}},
		MaxTokens: e.maxTokens,
		Schema: &llm.ResponseSchema{
			Name:        model.DatasetSchemaName,
			Description: schemaDescription,
			Definition:  model.DatasetJSONSchema(),
		},
	})
	if err != nil {
		metrics.RecordExtraction(e.client.Name(), "", "error", time.Since(start).Seconds(), 0, 0)
		e.logger.Warn("extraction call failed",
			zap.String("provider", e.client.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	dataset, err := model.DecodeDataset([]byte(stripCodeFence(resp.Content)))
	if err != nil {
		metrics.RecordExtraction(e.client.Name(), resp.Model, "invalid", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
		e.logger.Warn("extraction returned off-schema payload",
			zap.String("provider", e.client.Name()),
			zap.String("stop_reason", resp.StopReason),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	metrics.RecordExtraction(e.client.Name(), resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	e.logger.Debug("extraction complete",
		zap.String("provider", e.client.Name()),
		zap.String("model", resp.Model),
		zap.Int("pairs", len(dataset.Conversation)),
		zap.Int64("latency_ms", resp.LatencyMs),
	)

	return dataset, nil
}

// stripCodeFence removes a Markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
