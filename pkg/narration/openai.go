package narration

import (
	"context"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates phrases with any OpenAI-compatible chat completion API.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI generator. baseURL may be empty for api.openai.com.
func NewOpenAI(apiKey, baseURL, model string, logger *slog.Logger) (*OpenAI, error) {
	if apiKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.With("component", "narration.openai"),
	}, nil
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, c Context) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(c)},
		},
		MaxTokens:   24,
		Temperature: 0.3,
	})
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", WrapError(providerOpenAI, ErrEmptyPhrase)
	}
	text := Clean(resp.Choices[0].Message.Content)
	if text == "" {
		return "", WrapError(providerOpenAI, ErrEmptyPhrase)
	}
	return text, nil
}
