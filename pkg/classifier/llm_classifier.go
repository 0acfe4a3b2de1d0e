package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"fbo-callrelay-be/internal/constant"
	"fbo-callrelay-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LLMClassifier asks a chat model for the service intents of one message.
type LLMClassifier struct {
	llmProvider llm.LLMProvider
}

var _ Classifier = (*LLMClassifier)(nil)

func NewLLMClassifier(llmProvider llm.LLMProvider) *LLMClassifier {
	return &LLMClassifier{llmProvider: llmProvider}
}

type llmResult struct {
	Services []Intent `json:"services"`
}

func (c *LLMClassifier) Classify(ctx context.Context, role Role, message string, contextLines []ContextLine) ([]Intent, error) {
	ctx, span := otel.Tracer("classifier").Start(ctx, "LLMClassifier.Classify")
	defer span.End()
	span.SetAttributes(
		attribute.String("classifier.role", string(role)),
		attribute.Int("classifier.message_length", len(message)),
		attribute.Int("classifier.context_lines", len(contextLines)),
	)

	history := []llm.Message{
		{Role: "system", Content: constant.ServiceIntentPrompt},
		{Role: "user", Content: buildUserPrompt(role, message, contextLines)},
	}

	// Temperature 0 for deterministic classification
	response, err := c.llmProvider.Chat(ctx, history, llm.WithTemperature(0.0), llm.WithJSONResponse())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		return nil, fmt.Errorf("classify %s message: %w", role, err)
	}

	intents, err := parseIntents(response)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable response")
		return nil, err
	}

	span.SetAttributes(attribute.Int("classifier.intents", len(intents)))
	return intents, nil
}

func buildUserPrompt(role Role, message string, contextLines []ContextLine) string {
	var sb strings.Builder
	for i, line := range trimContext(contextLines) {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %q", strings.ToUpper(string(line.Role)), line.Message))
	}
	return fmt.Sprintf(constant.ServiceIntentUserTemplate, sb.String(), strings.ToUpper(string(role)), message)
}

func parseIntents(response string) ([]Intent, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in classifier response")
	}

	var result llmResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	return Normalize(result.Services), nil
}

func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
