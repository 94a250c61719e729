package provider

import (
	"fmt"

	"storechat/config"
	"storechat/model"
)

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeRuleBased  ProviderType = "rulebased"
)

// NewProvider creates a provider from configuration. This is the centralized
// factory for every provider type; the persona instruction is baked into the
// adapter so each backend can encode it per its own role conventions.
//
// OpenRouter is OpenAI-compatible and reuses the OpenAI adapter with a
// different default base URL.
func NewProvider(cfg config.ProviderConfig, persona string) (model.Provider, error) {
	switch ProviderType(cfg.Type) {
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg, persona)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg, persona)
	case ProviderTypeOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(cfg, persona)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg, persona)
	case ProviderTypeRuleBased:
		return NewRuleBasedProvider(""), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
