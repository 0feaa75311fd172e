package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultGatewayBaseURL = "https://openrouter.ai/api/v1"
	DefaultGatewayModel   = "openai/gpt-3.5-turbo"
)

type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// GatewayClient completes prompts through an OpenAI-compatible gateway such
// as OpenRouter. One non-streaming request per call, no retry.
type GatewayClient struct {
	generator chatGenerator
	model     string
}

func NewGatewayClient(ctx context.Context, baseURL, apiKey, modelName string) (*GatewayClient, error) {
	if baseURL == "" {
		baseURL = DefaultGatewayBaseURL
	}
	if modelName == "" {
		modelName = DefaultGatewayModel
	}
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway chat model: %w", err)
	}
	return &GatewayClient{generator: chatModel, model: modelName}, nil
}

func (c *GatewayClient) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	service := "llm gateway " + c.model
	resp, err := c.generator.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userText),
	})
	if err != nil {
		return "", &UpstreamError{Service: service, Err: err}
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &UpstreamError{Service: service, Err: errors.New("empty response from AI")}
	}
	return strings.TrimSpace(resp.Content), nil
}
