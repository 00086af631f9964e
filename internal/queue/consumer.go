package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ActionHandler ingests one action message.
type ActionHandler func(ctx context.Context, msg *ActionMessage) error

// delivery is the part of amqp.Delivery the consumer acknowledges through.
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// Consumer reads ActionQueueName and hands each message to an ActionHandler.
type Consumer struct {
	conn       *Connection
	handler    ActionHandler
	workers    int
	prefetch   int
	timeout    time.Duration
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int           // concurrent workers
	Prefetch int           // unacked messages per worker
	Timeout  time.Duration // per-message handler deadline
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1,
		Timeout:  10 * time.Second,
	}
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	def := DefaultConsumerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = def.Prefetch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// NewConsumer creates an action consumer.
func NewConsumer(conn *Connection, handler ActionHandler, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		conn:     conn,
		handler:  handler,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
		timeout:  cfg.Timeout,
	}
}

// Start begins consuming with manual acknowledgement.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	ch := c.conn.Channel()
	if err := ch.Qos(c.prefetch*c.workers, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(ActionQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("starting action consumer", "workers", c.workers, "prefetch", c.prefetch)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				slog.Info("action channel closed", "worker_id", id)
				return
			}
			c.process(ctx, id, &msg, msg.Body, msg.Redelivered)
		}
	}
}

// process settles one message: ack on success, reject malformed or invalid
// actions, and requeue a persistence failure once.
func (c *Consumer) process(ctx context.Context, workerID int, d delivery, body []byte, redelivered bool) {
	var msg ActionMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.LearnerID == uuid.Nil {
		slog.Error("malformed action message", "worker_id", workerID, "error", err)
		_ = d.Reject(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.handler(hctx, &msg)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			slog.Error("failed to ack action", "worker_id", workerID, "error", err)
		}
	case errors.Is(err, domain.ErrValidation):
		slog.Warn("rejected invalid action", "worker_id", workerID, "learner_id", msg.LearnerID, "error", err)
		_ = d.Reject(false)
	default:
		slog.Error("action ingest failed",
			"worker_id", workerID,
			"learner_id", msg.LearnerID,
			"redelivered", redelivered,
			"error", err,
		)
		_ = d.Nack(false, !redelivered)
	}
}

// Stop cancels the workers and waits for in-flight messages.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("action consumer stopped")
}

// EventHandler receives a published event.
type EventHandler func(env *Envelope)

// EventConsumer reads the event queues and dispatches by learner. A handler
// registered for uuid.Nil receives every event.
type EventConsumer struct {
	conn       *Connection
	handlers   map[uuid.UUID]EventHandler
	handlersMu sync.RWMutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewEventConsumer creates an event consumer.
func NewEventConsumer(conn *Connection) *EventConsumer {
	return &EventConsumer{
		conn:     conn,
		handlers: make(map[uuid.UUID]EventHandler),
	}
}

// Subscribe registers the handler for a learner's events.
func (ec *EventConsumer) Subscribe(learnerID uuid.UUID, handler EventHandler) {
	ec.handlersMu.Lock()
	defer ec.handlersMu.Unlock()
	ec.handlers[learnerID] = handler
}

// Unsubscribe removes a handler
func (ec *EventConsumer) Unsubscribe(learnerID uuid.UUID) {
	ec.handlersMu.Lock()
	defer ec.handlersMu.Unlock()
	delete(ec.handlers, learnerID)
}

// Start consumes the progress and achievement queues.
func (ec *EventConsumer) Start(ctx context.Context) error {
	ctx, ec.cancelFunc = context.WithCancel(ctx)

	ch := ec.conn.Channel()
	for _, name := range []string{ProgressQueueName, AchievementQueueName} {
		msgs, err := ch.Consume(name, "", true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to consume %s: %w", name, err)
		}
		ec.wg.Add(1)
		go ec.consume(ctx, msgs)
	}
	return nil
}

func (ec *EventConsumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer ec.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ec.dispatch(msg.Body)
		}
	}
}

func (ec *EventConsumer) dispatch(body []byte) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		slog.Error("failed to decode event", "error", err)
		return
	}

	ec.handlersMu.RLock()
	handler, ok := ec.handlers[env.Learner]
	all, hasAll := ec.handlers[uuid.Nil]
	ec.handlersMu.RUnlock()

	if ok {
		handler(env)
	}
	if hasAll && env.Learner != uuid.Nil {
		all(env)
	}
}

// Stop stops the event consumer
func (ec *EventConsumer) Stop() {
	if ec.cancelFunc != nil {
		ec.cancelFunc()
	}
	ec.wg.Wait()
}
