package service

import (
	"context"
	"encoding/json"
	"time"

	"fbo-callrelay-be/internal/pkg/logger"
	"fbo-callrelay-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const eventTypeMetadataKey = "event_type"

// EventPublisher is the outbound bus, satisfied by pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IEventRelayService interface {
	events.Broadcaster
	Consume(ctx context.Context) error
}

// eventRelayService mirrors dashboard events onto the message bus. Broadcast
// only queues onto the in-process channel so the store lock is never held
// across network I/O. The channel must be created with
// BlockPublishUntilSubscriberAck so each Broadcast returns only after Consume
// has taken the event; Consume acks at once and feeds a single worker, which
// publishes in broadcast order.
type eventRelayService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	publisher EventPublisher
	timeout   time.Duration
	queueSize int
	logger    logger.ILogger
}

func NewEventRelayService(pubSub *gochannel.GoChannel, topicName string, publisher EventPublisher, log logger.ILogger) IEventRelayService {
	return &eventRelayService{
		pubSub:    pubSub,
		topicName: topicName,
		publisher: publisher,
		timeout:   5 * time.Second,
		queueSize: 1024,
		logger:    log,
	}
}

func (s *eventRelayService) Broadcast(event events.Event) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		s.logger.Error("EventRelay", "Failed to marshal event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
		return
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(eventTypeMetadataKey, event.EventType())
	if err := s.pubSub.Publish(s.topicName, msg); err != nil {
		s.logger.Warn("EventRelay", "Failed to queue event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func (s *eventRelayService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	queue := make(chan events.BaseEvent, s.queueSize)
	go func() {
		defer close(queue)
		for msg := range messages {
			event, ok := s.decode(msg)
			// Ack before the bus round trip so Broadcast never waits on NATS.
			msg.Ack()
			if !ok {
				continue
			}
			select {
			case queue <- event:
			default:
				s.logger.Warn("EventRelay", "Relay queue full, dropping event", map[string]interface{}{"type": event.Type})
			}
		}
	}()

	go func() {
		for event := range queue {
			s.publish(ctx, event)
		}
	}()

	return nil
}

func (s *eventRelayService) decode(msg *message.Message) (events.BaseEvent, bool) {
	var data map[string]interface{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		s.logger.Error("EventRelay", "Failed to unmarshal queued event", map[string]interface{}{"error": err.Error()})
		return events.BaseEvent{}, false
	}

	return events.BaseEvent{
		Type:       msg.Metadata.Get(eventTypeMetadataKey),
		Data:       data,
		OccurredAt: time.Now(),
	}, true
}

// publish is best effort: failures are only logged.
func (s *eventRelayService) publish(ctx context.Context, event events.BaseEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("EventRelay", "Failed to mirror event to bus", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
	}
}
