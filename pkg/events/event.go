package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "NEW_ORDER").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Dashboard event types. The wire format is the payload merged with {"type": <EventType>}.
const (
	TypeInitialState = "INITIAL_STATE"
	TypeNewOrder     = "NEW_ORDER"
	TypeOrderUpdate  = "ORDER_UPDATE"
	TypeTranscript   = "TRANSCRIPT"
	TypeReset        = "RESET"
)

// Broadcaster delivers an event to every interested party. Implementations must not block.
type Broadcaster interface {
	Broadcast(event Event)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(event Event)

func (f BroadcasterFunc) Broadcast(event Event) {
	f(event)
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Envelope flattens an event into its dashboard wire shape.
func Envelope(event Event) map[string]interface{} {
	out := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		out[k] = v
	}
	out["type"] = event.EventType()
	return out
}
