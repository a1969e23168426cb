package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/soyeahso/minder/internal/logging"
)

// OpenAIClient talks to any OpenAI-compatible completions endpoint.
type OpenAIClient struct {
	api   *openai.Client
	model string
	log   *logging.Logger
}

// OpenAIConfig configures the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty means the default OpenAI endpoint
	Model   string
}

// NewOpenAIClient creates a completion client for an OpenAI-compatible API.
func NewOpenAIClient(cfg OpenAIConfig, log *logging.Logger) *OpenAIClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
		log:   log.Sub("llm.openai"),
	}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a chat completion request, bounded by CompletionTimeout.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, CompletionTimeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	c.log.Debug().
		Str("model", resp.Model).
		Int("promptTokens", resp.Usage.PromptTokens).
		Int("completionTokens", resp.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("completion finished")

	return &CompletionResponse{
		Content:  resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Duration: time.Since(start),
	}, nil
}
