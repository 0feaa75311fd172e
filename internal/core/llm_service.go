package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	DefaultEmbeddingModelName = "text-embedding-004"
	DefaultGeminiChatModel    = "gemini-1.5-flash-latest"
)

// Embedder turns text into a vector embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer sends a fixed system prompt and one user turn to a language model
// and returns the completion text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// GeminiService talks to the Gemini API. It provides the embeddings for the
// similarity corpus and can also act as the LLM fallback.
type GeminiService struct {
	client     *genai.Client
	embedModel string
	chatModel  string
	logger     *zap.Logger
}

func NewGeminiService(ctx context.Context, apiKey, embedModel, chatModel string, logger *zap.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if embedModel == "" {
		embedModel = DefaultEmbeddingModelName
	}
	if chatModel == "" {
		chatModel = DefaultGeminiChatModel
	}
	return &GeminiService{
		client:     client,
		embedModel: embedModel,
		chatModel:  chatModel,
		logger:     logger,
	}, nil
}

func (s *GeminiService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.embedModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &UpstreamError{Service: "gemini embedding", Err: err}
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &UpstreamError{Service: "gemini embedding", Err: errors.New("no embedding data received")}
	}
	return res.Embedding.Values, nil
}

func (s *GeminiService) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	model := s.client.GenerativeModel(s.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userText))
	if err != nil {
		return "", &UpstreamError{Service: "gemini completion", Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &UpstreamError{Service: "gemini completion", Err: errors.New("empty response")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("ignoring non-text gemini response part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	answer := strings.TrimSpace(responseText.String())
	if answer == "" {
		return "", &UpstreamError{Service: "gemini completion", Err: errors.New("empty completion text")}
	}
	return answer, nil
}
