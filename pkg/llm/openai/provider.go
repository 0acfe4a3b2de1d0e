package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fbo-callrelay-be/pkg/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider talks to the chat completions endpoint. Any OpenAI-compatible server
// works through baseURL.
type Provider struct {
	name    string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var _ llm.LLMProvider = (*Provider)(nil)

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration) *Provider {
	return NewCompatibleProvider("openai", apiKey, baseURL, model, timeout)
}

// NewCompatibleProvider is NewOpenAIProvider for other vendors speaking the
// same protocol; name only shows up in errors.
func NewCompatibleProvider(name, apiKey, baseURL, model string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := &llm.Options{Model: p.model, Temperature: 0.7}
	for _, o := range options {
		o(opts)
	}

	reqBody := chatRequest{
		Model:       opts.Model,
		Messages:    history,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var chatResp chatResponse
	err := llm.PostJSON(ctx, p.client, p.name, p.baseURL+"/chat/completions", llm.BearerAuth(p.apiKey), reqBody, &chatResp)
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) && chatResp.Error != nil {
		return "", fmt.Errorf("%s error (status %d): %s", p.name, statusErr.StatusCode, chatResp.Error.Message)
	}
	if err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices from %s", p.name)
	}
	return chatResp.Choices[0].Message.Content, nil
}
