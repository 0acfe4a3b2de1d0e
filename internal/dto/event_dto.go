package dto

import (
	"time"

	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/pkg/events"
)

// Constructors for the dashboard stream. Payloads must be snapshots: the bus relay
// serializes them after the store lock is released.

func InitialStateEvent(orders []entity.Order) events.Event {
	if orders == nil {
		orders = []entity.Order{}
	}
	return events.BaseEvent{
		Type:       events.TypeInitialState,
		Data:       map[string]interface{}{"orders": orders},
		OccurredAt: time.Now(),
	}
}

func NewOrderEvent(order entity.Order) events.Event {
	return events.BaseEvent{
		Type:       events.TypeNewOrder,
		Data:       map[string]interface{}{"order": order},
		OccurredAt: time.Now(),
	}
}

func OrderUpdateEvent(order entity.Order) events.Event {
	return events.BaseEvent{
		Type:       events.TypeOrderUpdate,
		Data:       map[string]interface{}{"order": order},
		OccurredAt: time.Now(),
	}
}

func TranscriptEvent(orderID string, entry entity.TranscriptEntry, agents []entity.TriggeredAgent) events.Event {
	return events.BaseEvent{
		Type: events.TypeTranscript,
		Data: map[string]interface{}{
			"orderId":          orderID,
			"role":             entry.Role,
			"message":          entry.Content,
			"triggered_agents": agents,
		},
		OccurredAt: entry.Timestamp,
	}
}

func ResetEvent() events.Event {
	return events.BaseEvent{
		Type:       events.TypeReset,
		Data:       map[string]interface{}{},
		OccurredAt: time.Now(),
	}
}
