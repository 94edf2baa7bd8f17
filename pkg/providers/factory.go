package providers

import (
	"fmt"
	"strings"

	"github.com/chatpilot/chatpilot/pkg/config"
)

// ProviderNameForModel picks the backend that serves model.
func ProviderNameForModel(model string) string {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "claude") || strings.HasPrefix(m, "anthropic/") {
		return "anthropic"
	}
	return "openai"
}

// CreateProvider builds the provider serving model from cfg.
func CreateProvider(cfg config.ProvidersConfig, model string, maxTokens int) (LLMProvider, error) {
	switch ProviderNameForModel(model) {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("model %s needs an anthropic api key", model)
		}
		return NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.APIBase, maxTokens), nil
	default:
		if cfg.OpenAI.APIKey == "" && cfg.OpenAI.APIBase == "" {
			return nil, fmt.Errorf("model %s needs an openai api key", model)
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, maxTokens), nil
	}
}

// CreateImageDescriber returns nil when no OpenAI-compatible key is
// configured; images then degrade to excluded messages.
func CreateImageDescriber(cfg config.ProvidersConfig, model string) ImageDescriber {
	if cfg.OpenAI.APIKey == "" && cfg.OpenAI.APIBase == "" {
		return nil
	}
	return NewOpenAIVision(cfg.OpenAI.APIKey, cfg.OpenAI.APIBase, model)
}
