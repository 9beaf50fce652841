// Package generator is the generation-provider boundary: one
// request/response call that produces a draft content body. A failed
// call surfaces as a draft that never materializes; nothing downstream
// depends on this package.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"socialflow/internal/domain"
)

type Config struct {
	APIKey     string
	Model      string
	BrandVoice string
}

type OpenAI struct {
	client     *openai.Client
	model      string
	brandVoice string
	logger     *slog.Logger
}

func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	return &OpenAI{
		client:     openai.NewClient(cfg.APIKey),
		model:      cfg.Model,
		brandVoice: cfg.BrandVoice,
		logger:     logger,
	}
}

func (g *OpenAI) GenerateBody(ctx context.Context, pillar domain.Pillar, topic string) (string, error) {
	systemPrompt := fmt.Sprintf(
		"You write social media posts. Brand voice: %s. Category: %s. "+
			"Keep it under 280 characters, no hashtags.",
		g.brandVoice, pillar,
	)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Write a post about: " + topic},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}

	body := strings.TrimSpace(resp.Choices[0].Message.Content)
	body = appendHashtags(body, pillar)

	g.logger.Debug("generated content body", "pillar", pillar, "length", len(body))
	return body, nil
}
