package openai

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"lyricsync/pkg/ai"
)

var _ ai.AiInterface = (*OpenAi)(nil)

// OpenAi OpenAI 兼容接口客户端
type OpenAi struct {
	model  string
	client *openai.Client
}

// NewOpenAi baseURL 为空时使用官方地址
func NewOpenAi(apiKey, modelName, baseURL string) *OpenAi {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAi{model: modelName, client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAi) Name() string {
	return "openai"
}

func (o *OpenAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: 200,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
