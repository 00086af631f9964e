// Package resilient decorates a Store with fortify retry, circuit breaker and
// bulkhead policies.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
)

// Config tunes the policies.
type Config struct {
	// MaxAttempts bounds retries of reads and idempotent writes. Appends run
	// once.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold int
	OpenTimeout      time.Duration

	// MaxConcurrent store calls; the same number may wait up to QueueTimeout.
	MaxConcurrent int
	QueueTimeout  time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the policies used by the daemon.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         time.Second,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		MaxConcurrent:    16,
		QueueTimeout:     5 * time.Second,
	}
}

// outcome carries a store result through the policies. Expected errors such
// as not-found ride in err so they never count as failures.
type outcome struct {
	value any
	err   error
}

// Store wraps another engine.Store.
type Store struct {
	next     engine.Store
	breaker  circuitbreaker.CircuitBreaker[outcome]
	retrier  retry.Retry[outcome]
	bulkhead bulkhead.Bulkhead[outcome]
}

// New wraps next with the configured policies.
func New(next engine.Store, cfg Config) *Store {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = def.QueueTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailureThreshold

	return &Store{
		next: next,
		breaker: circuitbreaker.New[outcome](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("store circuit breaker state change", "from", from.String(), "to", to.String())
			},
		}),
		retrier: retry.New[outcome](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   retryable,
		}),
		bulkhead: bulkhead.New[outcome](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxConcurrent,
			QueueTimeout:  cfg.QueueTimeout,
		}),
	}
}

func expected(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation)
}

func retryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// call runs fn under the bulkhead and breaker, retrying when idempotent.
func call[T any](ctx context.Context, s *Store, idempotent bool, fn func(context.Context) (T, error)) (T, error) {
	attempt := func(ctx context.Context) (outcome, error) {
		return s.bulkhead.Execute(ctx, func(ctx context.Context) (outcome, error) {
			v, err := fn(ctx)
			if err != nil && expected(err) {
				return outcome{value: v, err: err}, nil
			}
			return outcome{value: v}, err
		})
	}
	guarded := attempt
	if idempotent {
		guarded = func(ctx context.Context) (outcome, error) {
			return s.retrier.Do(ctx, attempt)
		}
	}

	out, err := s.breaker.Execute(ctx, guarded)
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := out.value.(T)
	return v, out.err
}

func exec(ctx context.Context, s *Store, idempotent bool, fn func(context.Context) error) error {
	_, err := call(ctx, s, idempotent, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Ping bypasses the policies so health checks see the real state.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Store) GetProgress(ctx context.Context, key domain.ExerciseKey) (*domain.ProgressRecord, error) {
	return call(ctx, s, true, func(ctx context.Context) (*domain.ProgressRecord, error) {
		return s.next.GetProgress(ctx, key)
	})
}

func (s *Store) ListProgress(ctx context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error) {
	return call(ctx, s, true, func(ctx context.Context) ([]*domain.ProgressRecord, error) {
		return s.next.ListProgress(ctx, learnerID, exerciseType)
	})
}

func (s *Store) UpsertProgress(ctx context.Context, p *domain.ProgressRecord) error {
	return exec(ctx, s, true, func(ctx context.Context) error {
		return s.next.UpsertProgress(ctx, p)
	})
}

// UpdateProgress is retried as a whole; fn may run more than once.
func (s *Store) UpdateProgress(ctx context.Context, key domain.ExerciseKey, fn domain.ProgressUpdate) (*domain.ProgressRecord, error) {
	return call(ctx, s, true, func(ctx context.Context) (*domain.ProgressRecord, error) {
		return s.next.UpdateProgress(ctx, key, fn)
	})
}

func (s *Store) DeleteProgress(ctx context.Context, key domain.ExerciseKey) error {
	return exec(ctx, s, true, func(ctx context.Context) error {
		return s.next.DeleteProgress(ctx, key)
	})
}

func (s *Store) GetPreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error) {
	return call(ctx, s, true, func(ctx context.Context) (*domain.Preferences, error) {
		return s.next.GetPreferences(ctx, learnerID)
	})
}

func (s *Store) UpsertPreferences(ctx context.Context, p *domain.Preferences) error {
	return exec(ctx, s, true, func(ctx context.Context) error {
		return s.next.UpsertPreferences(ctx, p)
	})
}

func (s *Store) AppendActionLog(ctx context.Context, e *domain.ActionLogEntry) error {
	return exec(ctx, s, false, func(ctx context.Context) error {
		return s.next.AppendActionLog(ctx, e)
	})
}

func (s *Store) ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	return call(ctx, s, true, func(ctx context.Context) ([]*domain.ActionLogEntry, error) {
		return s.next.ListActionLog(ctx, learnerID, since)
	})
}

func (s *Store) AppendSkillAssessment(ctx context.Context, a *domain.SkillAssessment) error {
	return exec(ctx, s, false, func(ctx context.Context) error {
		return s.next.AppendSkillAssessment(ctx, a)
	})
}

func (s *Store) ListSkillAssessments(ctx context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error) {
	return call(ctx, s, true, func(ctx context.Context) ([]*domain.SkillAssessment, error) {
		return s.next.ListSkillAssessments(ctx, learnerID)
	})
}

func (s *Store) ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error) {
	return call(ctx, s, true, func(ctx context.Context) ([]*domain.Recommendation, error) {
		return s.next.ListRecommendations(ctx, learnerID, activeOnly, now)
	})
}

func (s *Store) UpsertRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	return exec(ctx, s, true, func(ctx context.Context) error {
		return s.next.UpsertRecommendation(ctx, rec)
	})
}

func (s *Store) AppendAwardedAchievement(ctx context.Context, a *domain.AwardedAchievement) error {
	return exec(ctx, s, false, func(ctx context.Context) error {
		return s.next.AppendAwardedAchievement(ctx, a)
	})
}

func (s *Store) ListAwardedAchievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	return call(ctx, s, true, func(ctx context.Context) ([]*domain.AwardedAchievement, error) {
		return s.next.ListAwardedAchievements(ctx, learnerID)
	})
}

var _ engine.Store = (*Store)(nil)
