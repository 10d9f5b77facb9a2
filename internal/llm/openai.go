package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/util"
)

// OpenAIProvider implements Provider for OpenAI-compatible chat endpoints
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(config.timeout(30*time.Second), config.HTTPProxy, config.HTTPSProxy, config.NoProxy)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable lists models as a lightweight reachability and key check
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		log.Warnw("OpenAI API check failed", "error", err)
		return false
	}
	return true
}

// ExtractEntities asks the chat model for a JSON object of entity mentions
func (p *OpenAIProvider) ExtractEntities(ctx context.Context, text string) (map[string]string, error) {
	model := p.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.timeout(30*time.Second))
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(text)},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return ParseEntities(strings.TrimSpace(resp.Choices[0].Message.Content))
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}
