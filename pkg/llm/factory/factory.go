package factory

import (
	"fmt"
	"time"

	"fbo-callrelay-be/pkg/llm"
	"fbo-callrelay-be/pkg/llm/huggingface"
	"fbo-callrelay-be/pkg/llm/ollama"
	"fbo-callrelay-be/pkg/llm/openai"
)

type ProviderConfig struct {
	Provider string // "openai", "ollama", "huggingface"
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Timeout), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
