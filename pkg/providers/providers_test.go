package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpilot/chatpilot/pkg/config"
)

func TestProviderNameForModel(t *testing.T) {
	assert.Equal(t, "anthropic", ProviderNameForModel("claude-sonnet-4-5"))
	assert.Equal(t, "openai", ProviderNameForModel("gpt-4o"))
	assert.Equal(t, "openai", ProviderNameForModel("gpt-3.5-turbo"))
}

func TestCreateProviderRequiresKey(t *testing.T) {
	_, err := CreateProvider(config.ProvidersConfig{}, "gpt-4o", 0)
	assert.Error(t, err)
	_, err = CreateProvider(config.ProvidersConfig{}, "claude-haiku-4-5", 0)
	assert.Error(t, err)

	p, err := CreateProvider(config.ProvidersConfig{Anthropic: config.ProviderConfig{APIKey: "k"}}, "claude-haiku-4-5", 0)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleSystem, Content: "b"},
		{Role: RoleUser, Content: "hi"},
	})
	assert.Equal(t, "a\n\nb", system)
	require.Len(t, rest, 1)
	assert.Equal(t, "hi", rest[0].Content)
}

func TestToAnthropicMessagesMergesSameRole(t *testing.T) {
	out := toAnthropicMessages([]Message{
		{Role: RoleUser, Content: "one"},
		{Role: RoleUser, Content: "two"},
		{Role: RoleAssistant, Content: "reply"},
	})
	assert.Len(t, out, 2)
}

func TestOpenAIProviderChat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"sounds good!"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, 0)
	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be human"},
		{Role: RoleUser, Content: "dinner?"},
	}, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "sounds good!", reply)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestOpenAIProviderErrorsAreClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", srv.URL, 0)
	_, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationUnavailable))
	assert.True(t, IsRejected(err))

	var ge *GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)

	srv.Close()
	_, err = p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, "gpt-4o")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationUnavailable))
	assert.False(t, IsRejected(err))
}
