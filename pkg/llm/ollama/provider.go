package ollama

import (
	"context"
	"net/http"
	"time"

	"fbo-callrelay-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{Model: o.ModelName, Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}

	reqBody := chatRequest{
		Model:    options.Model,
		Messages: history,
		Options: chatOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}
	// Ollama constrains output to one JSON value with format=json.
	if options.JSONMode {
		reqBody.Format = "json"
	}

	var chatResp chatResponse
	if err := llm.PostJSON(ctx, o.Client, "ollama", o.BaseURL+"/api/chat", nil, reqBody, &chatResp); err != nil {
		return "", err
	}
	return chatResp.Message.Content, nil
}
