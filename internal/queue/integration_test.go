//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/queue"
	"github.com/felixgeelhaar/cyberquest/internal/storage/memory"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// setupRabbitMQ starts a RabbitMQ container and returns an open connection.
func setupRabbitMQ(t *testing.T) *queue.Connection {
	t.Helper()
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get AMQP URL: %v", err)
	}

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	if _, err := queue.NewConnection("amqp://invalid:5672"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_SubmissionPublishesEvents(t *testing.T) {
	conn := setupRabbitMQ(t)
	if !conn.IsConnected() {
		t.Fatal("expected connection to be active")
	}

	svc := engine.NewService(memory.New(), engine.Config{})
	dispatcher := domain.NewEventDispatcher()
	queue.NewProducer(conn).Attach(dispatcher)
	svc.SetEventDispatcher(dispatcher)

	score, spent := 100.0, 300
	res, err := svc.SubmitProgress(context.Background(), uuid.New(), engine.Submission{ExerciseID: 1, Score: &score, TimeSpent: &spent})
	if err != nil {
		t.Fatalf("SubmitProgress() error = %v", err)
	}

	ch := conn.Channel()
	progress, err := ch.QueueInspect(queue.ProgressQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if progress.Messages != 1 {
		t.Errorf("progress messages = %d; want 1", progress.Messages)
	}
	achievements, err := ch.QueueInspect(queue.AchievementQueueName)
	if err != nil {
		t.Fatalf("failed to inspect queue: %v", err)
	}
	if achievements.Messages != len(res.Achievements) {
		t.Errorf("achievement messages = %d; want %d", achievements.Messages, len(res.Achievements))
	}
}

func TestIntegration_EventConsumer(t *testing.T) {
	conn := setupRabbitMQ(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	learner := uuid.New()
	received := make(chan *queue.Envelope, 1)
	consumer := queue.NewEventConsumer(conn)
	consumer.Subscribe(learner, func(env *queue.Envelope) { received <- env })
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer consumer.Stop()

	producer := queue.NewProducer(conn)
	a, _ := domain.LookupAchievement(domain.AchStreak3)
	if err := producer.PublishEvent(ctx, domain.NewAchievementUnlockedEvent(learner, a, "daily_activity", time.Now())); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	select {
	case env := <-received:
		if env.Type != domain.EventAchievementUnlocked {
			t.Errorf("Type = %q; want %q", env.Type, domain.EventAchievementUnlocked)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestIntegration_ActionConsumer(t *testing.T) {
	conn := setupRabbitMQ(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := memory.New()
	svc := engine.NewService(store, engine.Config{})

	logged := make(chan struct{}, 4)
	handler := queue.IngestActions(svc)
	consumer := queue.NewConsumer(conn, func(ctx context.Context, msg *queue.ActionMessage) error {
		err := handler(ctx, msg)
		logged <- struct{}{}
		return err
	}, queue.ConsumerConfig{Workers: 2})
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer consumer.Stop()

	learner := uuid.New()
	producer := queue.NewProducer(conn)
	for _, action := range []string{domain.ActionStart, domain.ActionHintUsed} {
		if err := producer.PublishAction(ctx, &queue.ActionMessage{LearnerID: learner, ExerciseID: 1, ActionType: action}); err != nil {
			t.Fatalf("PublishAction() error = %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case <-logged:
		case <-ctx.Done():
			t.Fatal("timed out waiting for actions")
		}
	}

	entries, err := store.ListActionLog(ctx, learner, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("logged %d actions; want 2", len(entries))
	}
}
