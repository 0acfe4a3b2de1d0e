package huggingface

import (
	"time"

	"fbo-callrelay-be/pkg/llm"
	"fbo-callrelay-be/pkg/llm/openai"
)

const defaultRouterURL = "https://router.huggingface.co/v1"

// NewHuggingFaceProvider targets the Hugging Face inference router, which
// speaks the OpenAI chat completions protocol.
func NewHuggingFaceProvider(token, baseURL, model string, timeout time.Duration) llm.LLMProvider {
	if baseURL == "" {
		baseURL = defaultRouterURL
	}
	return openai.NewCompatibleProvider("huggingface", token, baseURL, model, timeout)
}
