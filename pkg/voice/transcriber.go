package voice

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/chatpilot/chatpilot/pkg/logger"
)

const (
	groqAPIBase        = "https://api.groq.com/openai/v1"
	groqWhisperModel   = "whisper-large-v3"
	openAIWhisperModel = "whisper-1"
)

type TranscriptionResponse struct {
	Text string `json:"text"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioFilePath string) (*TranscriptionResponse, error)
	IsAvailable() bool
}

// WhisperTranscriber talks to any OpenAI-compatible transcription endpoint.
type WhisperTranscriber struct {
	name   string
	apiKey string
	model  string
	client openai.Client
}

func NewOpenAITranscriber(apiKey, apiBase string) *WhisperTranscriber {
	return newWhisper("openai", apiKey, apiBase, openAIWhisperModel)
}

func NewGroqTranscriber(apiKey string) *WhisperTranscriber {
	return newWhisper("groq", apiKey, groqAPIBase, groqWhisperModel)
}

func newWhisper(name, apiKey, apiBase, model string) *WhisperTranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &WhisperTranscriber{
		name:   name,
		apiKey: apiKey,
		model:  model,
		client: openai.NewClient(opts...),
	}
}

func (t *WhisperTranscriber) IsAvailable() bool {
	return t != nil && t.apiKey != ""
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioFilePath string) (*TranscriptionResponse, error) {
	f, err := os.Open(audioFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	logger.DebugCF("voice", "Transcribing audio", map[string]any{
		"backend": t.name,
		"file":    audioFilePath,
	})

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe with %s: %w", t.name, err)
	}
	return &TranscriptionResponse{Text: strings.TrimSpace(resp.Text)}, nil
}
