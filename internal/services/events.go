package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-accounts/internal/logger"
	"github.com/sbilibin2017/gw-accounts/internal/models"
	"github.com/segmentio/kafka-go"
)

// Deferrer schedules fn to run once the work of ctx is durable. It returns
// false when ctx has nothing to wait for.
type Deferrer func(ctx context.Context, fn func()) bool

// EventPublisherOpt configures an EventPublisher.
type EventPublisherOpt func(*EventPublisher)

// WithDeferrer holds events back until d runs them, so an event is only
// written for a change that was committed.
func WithDeferrer(d Deferrer) EventPublisherOpt {
	return func(p *EventPublisher) {
		p.deferrer = d
	}
}

// EventPublisher publishes user lifecycle events to Kafka. A nil writer
// disables publishing.
type EventPublisher struct {
	writer   KafkaWriter
	deferrer Deferrer
	now      func() time.Time
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(writer KafkaWriter, opts ...EventPublisherOpt) *EventPublisher {
	p := &EventPublisher{writer: writer, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event keyed by user id, after commit when a deferrer is
// set. Failures are logged and never returned.
func (p *EventPublisher) Publish(ctx context.Context, eventType string, userID int64) {
	log := logger.FromContext(ctx)
	if p.writer == nil {
		log.Debugw("Kafka writer not configured, skipping publishing", "type", eventType, "user_id", userID)
		return
	}

	event := models.UserEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: p.now().Unix(),
	}

	if p.deferrer != nil {
		// The request may be over by the time the callback runs.
		detached := context.WithoutCancel(ctx)
		if p.deferrer(ctx, func() { p.write(detached, event) }) {
			return
		}
	}
	p.write(ctx, event)
}

func (p *EventPublisher) write(ctx context.Context, event models.UserEvent) {
	log := logger.FromContext(ctx)

	data, err := json.Marshal(event)
	if err != nil {
		log.Errorw("Failed to marshal user event", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Errorw("Failed to publish user event", "event_id", event.EventID, "type", event.Type, "error", err)
		return
	}
	log.Infow("User event published", "event_id", event.EventID, "type", event.Type, "user_id", event.UserID)
}

// Close closes the underlying writer.
func (p *EventPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
