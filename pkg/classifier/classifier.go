package classifier

import (
	"context"
	"strings"
)

type Role string

const (
	RolePilot Role = "pilot"
	RoleAgent Role = "agent"
)

type ServiceType string

const (
	ServiceTransport   ServiceType = "transport"
	ServiceRefueling   ServiceType = "refueling"
	ServiceCatering    ServiceType = "catering"
	ServiceWine        ServiceType = "wine"
	ServiceReservation ServiceType = "reservation"
	ServiceUrgent      ServiceType = "urgent"
)

type Action string

const (
	ActionSearch   Action = "search"
	ActionFinalize Action = "finalize"
	ActionCancel   Action = "cancel"
)

// MaxContextLines is how many prior transcript lines accompany a message.
const MaxContextLines = 3

// Intent is one service request detected in a single transcript fragment.
type Intent struct {
	Type    ServiceType `json:"type"`
	Action  Action      `json:"action"`
	Details string      `json:"details,omitempty"`
}

type ContextLine struct {
	Role    Role
	Message string
}

// Classifier turns a transcript fragment into service intents.
//
// Implementations must honour the same contract: an emergency yields exactly one
// urgent/finalize intent; several services in one message are returned
// separately (food and wine are never merged); questions never finalize; an
// upsell of a past order suppresses the upsold services only; a decline is a
// cancel; nothing detected is an empty list.
type Classifier interface {
	Classify(ctx context.Context, role Role, message string, contextLines []ContextLine) ([]Intent, error)
}

var knownActions = map[Action]bool{
	ActionSearch:   true,
	ActionFinalize: true,
	ActionCancel:   true,
}

// Normalize lower-cases fields, drops unknown actions and collapses the list
// to a single urgent intent when one is present. Unknown service types are kept
// so the caller decides how to reject them.
func Normalize(intents []Intent) []Intent {
	out := make([]Intent, 0, len(intents))
	for _, in := range intents {
		in.Type = ServiceType(strings.ToLower(strings.TrimSpace(string(in.Type))))
		in.Action = Action(strings.ToLower(strings.TrimSpace(string(in.Action))))
		in.Details = strings.TrimSpace(in.Details)
		if in.Type == "" || !knownActions[in.Action] {
			continue
		}
		if in.Type == ServiceUrgent {
			in.Action = ActionFinalize
			return []Intent{in}
		}
		out = append(out, in)
	}
	return out
}

func trimContext(lines []ContextLine) []ContextLine {
	if len(lines) > MaxContextLines {
		return lines[len(lines)-MaxContextLines:]
	}
	return lines
}
