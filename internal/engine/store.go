package engine

import (
	"context"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Store is the persistence contract of the engine. Every component depends
// only on the subset of methods it calls.
type Store interface {
	Ping(ctx context.Context) error

	GetProgress(ctx context.Context, key domain.ExerciseKey) (*domain.ProgressRecord, error)
	// ListProgress returns every record of the learner, or only those of
	// exerciseType when it is not empty.
	ListProgress(ctx context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error)
	UpsertProgress(ctx context.Context, p *domain.ProgressRecord) error
	// UpdateProgress runs fn and stores its result atomically with respect
	// to other updates of the same key.
	UpdateProgress(ctx context.Context, key domain.ExerciseKey, fn domain.ProgressUpdate) (*domain.ProgressRecord, error)
	DeleteProgress(ctx context.Context, key domain.ExerciseKey) error

	GetPreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error)
	UpsertPreferences(ctx context.Context, p *domain.Preferences) error

	AppendActionLog(ctx context.Context, e *domain.ActionLogEntry) error
	// ListActionLog returns entries at or after since in timestamp order.
	ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error)

	AppendSkillAssessment(ctx context.Context, a *domain.SkillAssessment) error
	ListSkillAssessments(ctx context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error)

	// ListRecommendations returns recommendations newest first. With
	// activeOnly only pending, unexpired ones at now are returned.
	ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error)
	UpsertRecommendation(ctx context.Context, rec *domain.Recommendation) error

	AppendAwardedAchievement(ctx context.Context, a *domain.AwardedAchievement) error
	ListAwardedAchievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error)
}
