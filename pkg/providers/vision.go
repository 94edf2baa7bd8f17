package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/chatpilot/chatpilot/pkg/utils"
)

const (
	describePrompt  = "Please provide a detailed description of the uploaded image, including its setting, main subjects, notable objects, mood, and other key elements."
	visionMaxTokens = 1200
)

// OpenAIVision describes images with a vision-capable chat model.
type OpenAIVision struct {
	client openai.Client
	model  string
}

func NewOpenAIVision(apiKey, apiBase, model string) *OpenAIVision {
	return &OpenAIVision{
		client: openai.NewClient(openAIOptions(apiKey, apiBase)...),
		model:  model,
	}
}

func (v *OpenAIVision) DescribeImage(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	dataURL := "data:" + utils.ImageMIMEType(path) + ";base64," + base64.StdEncoding.EncodeToString(data)

	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(describePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		MaxTokens: openai.Int(visionMaxTokens),
	})
	if err != nil {
		return "", wrapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision response contained no choices")
	}
	desc := strings.TrimSpace(resp.Choices[0].Message.Content)
	if desc == "" {
		return "", errors.New("vision response was empty")
	}
	return desc, nil
}
