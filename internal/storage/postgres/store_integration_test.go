//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/storage/postgres"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns a migrated store.
func setupPostgres(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "cyberquest",
				"POSTGRES_PASSWORD": "cyberquest",
				"POSTGRES_DB":       "cyberquest",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	url := fmt.Sprintf("postgres://cyberquest:cyberquest@%s:%s/cyberquest?sslmode=disable", host, port.Port())

	if err := postgres.Migrate(ctx, url); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := postgres.Migrate(ctx, url); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	pool, err := postgres.Open(ctx, url)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(pool.Close)
	return postgres.NewStore(pool)
}

func TestIntegration_Progress(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	key := domain.ExerciseKey{LearnerID: uuid.New(), ExerciseID: 1, ExerciseType: domain.ExerciseTypeSimulation}

	if _, err := store.GetProgress(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetProgress() error = %v; want not found", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateProgress(ctx, key, func(cur *domain.ProgressRecord) (*domain.ProgressRecord, error) {
				if cur == nil {
					cur = domain.NewProgressRecord(key, now)
				}
				cur.ApplyAttempt(domain.Attempt{Score: 90, TimeSpent: 120}, now)
				return cur, nil
			})
			if err != nil {
				t.Errorf("UpdateProgress() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetProgress(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 8 {
		t.Errorf("Attempts = %d; want 8", got.Attempts)
	}
	if got.Status != domain.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("Status = %q, CompletedAt = %v; want completed", got.Status, got.CompletedAt)
	}

	if err := store.DeleteProgress(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProgress(ctx, key); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteProgress() error = %v; want not found", err)
	}
}

func TestIntegration_ActionLogOrigin(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	learner := uuid.New()
	now := time.Now().UTC()

	withOrigin := &domain.ActionLogEntry{
		ID: uuid.New(), LearnerID: learner, SessionID: "s", ActionType: domain.ActionStart,
		ExerciseType: "simulation", Payload: []byte(`{"step":1}`),
		Origin:    &domain.Origin{IPAddress: "192.0.2.1", UserAgent: "cli"},
		Timestamp: now.Add(-time.Minute),
	}
	bare := &domain.ActionLogEntry{
		ID: uuid.New(), LearnerID: learner, SessionID: "s", ActionType: domain.ActionDailyActivity,
		ExerciseType: "simulation", Timestamp: now,
	}
	for _, e := range []*domain.ActionLogEntry{bare, withOrigin} {
		if err := store.AppendActionLog(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListActionLog(ctx, learner, now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ListActionLog() = %d; want 2", len(got))
	}
	if got[0].Origin == nil || got[0].Origin.IPAddress != "192.0.2.1" {
		t.Errorf("Origin = %+v", got[0].Origin)
	}
	if got[1].Origin != nil || got[1].Payload != nil {
		t.Errorf("bare entry = %+v; want no origin or payload", got[1])
	}
}

func TestIntegration_EngineFlow(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	svc := engine.NewService(store, engine.Config{})
	learner := uuid.New()
	score, spent := 100.0, 300

	res, err := svc.SubmitProgress(ctx, learner, engine.Submission{ExerciseID: 1, Score: &score, TimeSpent: &spent})
	if err != nil {
		t.Fatalf("SubmitProgress() error = %v", err)
	}
	if res.Summary.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d; want 1", res.Summary.CompletedCount)
	}

	recs, err := svc.ListRecommendations(ctx, learner, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	rec, err := svc.ActOnRecommendation(ctx, learner, recs[0].ID, "accept")
	if err != nil {
		t.Fatalf("ActOnRecommendation() error = %v", err)
	}
	if rec.Status != domain.RecAccepted {
		t.Errorf("Status = %q; want accept", rec.Status)
	}

	awards, err := svc.Achievements(ctx, learner)
	if err != nil {
		t.Fatal(err)
	}
	if len(awards) != len(res.Achievements) {
		t.Errorf("ledger = %d; want %d", len(awards), len(res.Achievements))
	}
}
