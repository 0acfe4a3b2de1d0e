package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ToolCall struct {
	Name      string            `json:"name"`
	Arguments json.RawMessage   `json:"arguments"`
	Function  *ToolCallFunction `json:"function,omitempty"`
}

// WebhookPayload accepts both shapes the call platform sends: a tool call
// (top-level or inside tool_calls) and a transcript fragment.
type WebhookPayload struct {
	Type      string            `json:"type"`
	Name      string            `json:"name"`
	Arguments json.RawMessage   `json:"arguments"`
	Function  *ToolCallFunction `json:"function,omitempty"`
	ToolCalls []ToolCall        `json:"tool_calls"`

	UserText       string `json:"user_text"`
	UserTranscript string `json:"user_transcript"`
	AgentText      string `json:"agent_text"`
	AgentResponse  string `json:"agent_response"`
	Text           string `json:"text"`

	PhoneNumber  string `json:"phone_number"`
	CallerNumber string `json:"caller_number"`
	From         string `json:"from"`
}

func (p *WebhookPayload) IsToolCall() bool {
	return p.Type == "tool_call" || len(p.ToolCalls) > 0
}

// ToolCall returns the tool call to execute: the payload itself when typed as
// one, otherwise the first entry of tool_calls.
func (p *WebhookPayload) ToolCall() ToolCall {
	if p.Type == "tool_call" {
		return ToolCall{Name: p.Name, Arguments: p.Arguments, Function: p.Function}
	}
	if len(p.ToolCalls) > 0 {
		return p.ToolCalls[0]
	}
	return ToolCall{}
}

// Texts resolves the pilot and agent fragments. A generic "text" prefixed with
// "User:" belongs to the pilot; any other "text" is the agent speaking.
func (p *WebhookPayload) Texts() (userText, agentText string) {
	userText = firstNonEmpty(p.UserText, p.UserTranscript)
	agentText = firstNonEmpty(p.AgentText, p.AgentResponse)

	if text := strings.TrimSpace(p.Text); text != "" {
		if hasPrefixFold(text, "user:") {
			if userText == "" {
				userText = text
			}
		} else if agentText == "" {
			agentText = text
		}
	}

	return StripSpeakerPrefix(userText, "user:"), StripSpeakerPrefix(agentText, "agent:")
}

func (p *WebhookPayload) CallerPhone() string {
	return firstNonEmpty(p.PhoneNumber, p.CallerNumber, p.From)
}

func (tc ToolCall) ToolName() string {
	if tc.Name != "" {
		return tc.Name
	}
	if tc.Function != nil {
		return tc.Function.Name
	}
	return ""
}

// DecodeArguments unmarshals the tool arguments into v. Arguments may arrive as
// a JSON object or as a string holding JSON.
func (tc ToolCall) DecodeArguments(v interface{}) error {
	raw := tc.Arguments
	if len(bytes.TrimSpace(raw)) == 0 && tc.Function != nil {
		raw = tc.Function.Arguments
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return fmt.Errorf("decode argument string: %w", err)
		}
		raw = []byte(encoded)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

type AddServiceArgs struct {
	ServiceType string `json:"service_type" validate:"required"`
	Details     string `json:"details"`
}

type RegisterPilotArgs struct {
	TailNumber string `json:"tail_number" validate:"required,alphanum,max=7"`
}

// CallSetupRequest is the form the telephony platform posts when a call rings in.
type CallSetupRequest struct {
	From    string `form:"From" validate:"required_without=Caller"`
	Caller  string `form:"Caller" validate:"required_without=From"`
	CallSid string `form:"CallSid"`
}

func (r *CallSetupRequest) CallerPhone() string {
	return firstNonEmpty(r.From, r.Caller)
}

type WebhookOutcome string

const (
	OutcomeProcessed        WebhookOutcome = "processed"
	OutcomeIgnoredMalformed WebhookOutcome = "ignored_malformed"
	OutcomeClassifierFailed WebhookOutcome = "classifier_failed"
	OutcomeIgnoredEmpty     WebhookOutcome = "ignored_empty"
	OutcomeUnknownOrder     WebhookOutcome = "unknown_order"
)

// WebhookResult records what happened to an event. The HTTP answer is 200
// whatever the outcome.
type WebhookResult struct {
	Outcome WebhookOutcome `json:"outcome"`
	OrderID string         `json:"order_id,omitempty"`
	Ack     string         `json:"ack"`
	AckJSON bool           `json:"-"` // reply {"result": Ack} instead of plain text
}

const (
	AckOK                = "OK"
	AckTranscriptLogged  = "Transcript logged."
	AckToolProcessed     = "Tool processed."
	AckServiceConfirmed  = "Service confirmed manually."
	AckEmptyVoiceReponse = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

func StripSpeakerPrefix(text, prefix string) string {
	text = strings.TrimSpace(text)
	if hasPrefixFold(text, prefix) {
		return strings.TrimSpace(text[len(prefix):])
	}
	return text
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
