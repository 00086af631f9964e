// Package skill converts scores into proficiency tiers and tracks the
// latest tier per named skill.
package skill

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Store persists skill assessments.
type Store interface {
	AppendSkillAssessment(ctx context.Context, a *domain.SkillAssessment) error
	ListSkillAssessments(ctx context.Context, learnerID uuid.UUID) ([]*domain.SkillAssessment, error)
}

// Tracker records and reads skill assessments.
type Tracker struct {
	store  Store
	policy domain.TierPolicy
	now    func() time.Time
}

// NewTracker creates a tracker that classifies with policy.
func NewTracker(store Store, policy domain.TierPolicy, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	if len(policy.Floors) == 0 {
		policy = domain.StandardTiers
	}
	return &Tracker{store: store, policy: policy, now: clock}
}

// Policy returns the tier policy in use.
func (t *Tracker) Policy() domain.TierPolicy {
	return t.policy
}

// Input is one skill observation.
type Input struct {
	LearnerID    uuid.UUID
	SkillName    string
	ExerciseID   int
	ExerciseType string
	Score        float64
	MaxScore     float64
}

// Assess classifies the score and appends a new assessment row.
func (t *Tracker) Assess(ctx context.Context, in Input) (*domain.SkillAssessment, error) {
	if in.SkillName == "" {
		return nil, domain.NewValidationError("skill_name", "is required")
	}
	if in.MaxScore == 0 {
		in.MaxScore = domain.DefaultMaxScore
	}
	if in.MaxScore < 0 || math.IsNaN(in.MaxScore) {
		return nil, domain.NewValidationError("max_score", "must be positive")
	}
	if in.Score < 0 || math.IsNaN(in.Score) {
		return nil, domain.NewValidationError("score", "must not be negative")
	}

	pct := in.Score / in.MaxScore * 100
	a := &domain.SkillAssessment{
		ID:           uuid.New(),
		LearnerID:    in.LearnerID,
		SkillName:    in.SkillName,
		ExerciseID:   in.ExerciseID,
		ExerciseType: in.ExerciseType,
		Score:        in.Score,
		MaxScore:     in.MaxScore,
		Tier:         t.policy.Classify(pct),
		AssessedAt:   t.now(),
	}

	if err := t.store.AppendSkillAssessment(ctx, a); err != nil {
		return nil, fmt.Errorf("append skill assessment: %w", err)
	}
	return a, nil
}

// Current returns the most recent assessment of each skill.
func (t *Tracker) Current(ctx context.Context, learnerID uuid.UUID) (map[string]*domain.SkillAssessment, error) {
	rows, err := t.store.ListSkillAssessments(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list skill assessments: %w", err)
	}
	return Latest(rows), nil
}

// Latest reduces rows to the newest row per skill.
func Latest(rows []*domain.SkillAssessment) map[string]*domain.SkillAssessment {
	latest := make(map[string]*domain.SkillAssessment)
	for _, r := range rows {
		cur, ok := latest[r.SkillName]
		if !ok || r.AssessedAt.After(cur.AssessedAt) {
			latest[r.SkillName] = r
		}
	}
	return latest
}
