package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"fbo-callrelay-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher mirrors dashboard events onto a JetStream stream.
type Publisher struct {
	nc            *nats.Conn
	js            jetstream.JetStream
	subjectPrefix string
}

// NewPublisher connects to NATS and makes sure the stream for subjectPrefix exists.
func NewPublisher(url, streamName, subjectPrefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Limits retention: any number of observers may replay the call feed.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream '%s': %v", streamName, err)
	}

	return &Publisher{nc: nc, js: js, subjectPrefix: subjectPrefix}, nil
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, eventType)
}

// Publish sends an event to NATS.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(events.Envelope(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	subject := p.Subject(event.EventType())
	if _, err = p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to subject %s: %w", subject, err)
	}

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
