package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type OpenAIProvider struct {
	client    openai.Client
	maxTokens int
}

func NewOpenAIProvider(apiKey, apiBase string, maxTokens int) *OpenAIProvider {
	return &OpenAIProvider{
		client:    openai.NewClient(openAIOptions(apiKey, apiBase)...),
		maxTokens: maxTokens,
	}
}

func openAIOptions(apiKey, apiBase string) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return opts
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Provider: p.Name(), Kind: KindTransport, Err: errors.New("response contained no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &GenerationError{Provider: "openai", Kind: KindRejected, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &GenerationError{Provider: "openai", Kind: KindTransport, Err: fmt.Errorf("failed to call openai: %w", err)}
}
