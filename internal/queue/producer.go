package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
)

// publisher is the part of Connection the Producer needs.
type publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// publishTimeout bounds a single publish from the event dispatcher.
const publishTimeout = 5 * time.Second

// Producer publishes domain events to RabbitMQ.
type Producer struct {
	conn publisher
}

// NewProducer creates a producer on conn.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// routeFor returns the queue an event type is published to, or "".
func routeFor(eventType string) string {
	switch eventType {
	case domain.EventProgressSubmitted:
		return ProgressQueueName
	case domain.EventAchievementUnlocked:
		return AchievementQueueName
	}
	return ""
}

// PublishEvent sends ev to its queue. Events without a route are skipped.
func (p *Producer) PublishEvent(ctx context.Context, ev domain.Event) error {
	queue := routeFor(ev.EventType())
	if queue == "" {
		return nil
	}
	if err := p.conn.PublishJSON(ctx, queue, ev); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventType(), err)
	}
	slog.Debug("published event",
		"event_id", ev.EventID(),
		"type", ev.EventType(),
		"learner_id", ev.LearnerID(),
	)
	return nil
}

// PublishAction enqueues a client action for ingestion.
func (p *Producer) PublishAction(ctx context.Context, msg *ActionMessage) error {
	if err := p.conn.PublishJSON(ctx, ActionQueueName, msg); err != nil {
		return fmt.Errorf("failed to publish action: %w", err)
	}
	return nil
}

// Attach subscribes the producer to d. Publish failures are logged and never
// reach the engine.
func (p *Producer) Attach(d *domain.EventDispatcher) {
	d.SubscribeAll(func(ev domain.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.PublishEvent(ctx, ev); err != nil {
			slog.Warn("event publish failed", "type", ev.EventType(), "learner_id", ev.LearnerID(), "error", err)
		}
	})
}
