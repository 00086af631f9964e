package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/felixgeelhaar/cyberquest/internal/achievement"
	"github.com/felixgeelhaar/cyberquest/internal/adaptive"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/progress"
	"github.com/felixgeelhaar/cyberquest/internal/skill"
	"github.com/google/uuid"
)

// Submission is one performance report for an exercise. Score and TimeSpent
// are required.
type Submission struct {
	ExerciseID   int               `json:"exercise_id"`
	ExerciseType string            `json:"exercise_type,omitempty"`
	Score        *float64          `json:"score"`
	TimeSpent    *int              `json:"time_spent"`
	HintsUsed    int               `json:"hints_used"`
	MistakesMade int               `json:"mistakes_made"`
	Difficulty   domain.Difficulty `json:"difficulty,omitempty"`
}

// Validate checks the submission before anything is written.
func (s *Submission) Validate() error {
	if s.ExerciseID <= 0 {
		return domain.NewValidationError("exercise_id", "must be positive")
	}
	if s.Score == nil {
		return domain.NewValidationError("score", "is required")
	}
	if math.IsNaN(*s.Score) || *s.Score < 0 || *s.Score > 100 {
		return domain.NewValidationError("score", "must be between 0 and 100")
	}
	if s.TimeSpent == nil {
		return domain.NewValidationError("time_spent", "is required")
	}
	if *s.TimeSpent < 0 {
		return domain.NewValidationError("time_spent", "must not be negative")
	}
	if s.HintsUsed < 0 {
		return domain.NewValidationError("hints_used", "must not be negative")
	}
	if s.MistakesMade < 0 {
		return domain.NewValidationError("mistakes_made", "must not be negative")
	}
	if s.Difficulty != "" && !s.Difficulty.Valid() {
		return domain.NewValidationError("difficulty", "unknown difficulty "+string(s.Difficulty))
	}
	return nil
}

// SubmitResult is the outcome of SubmitProgress.
type SubmitResult struct {
	XPEarned     int                    `json:"xp_earned"`
	Achievements []domain.Achievement   `json:"achievements"`
	Summary      domain.Summary         `json:"progress_summary"`
	Progress     *domain.ProgressRecord `json:"progress"`
}

// SubmitProgress records an attempt and runs the follow-up flow: skill
// assessment, achievements and recommendations. Only the progress write can
// fail the call; follow-up failures are logged.
func (s *Service) SubmitProgress(ctx context.Context, learnerID uuid.UUID, sub Submission) (*SubmitResult, error) {
	if learnerID == uuid.Nil {
		return nil, domain.NewValidationError("learner_id", "is required")
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if sub.ExerciseType == "" {
		sub.ExerciseType = domain.ExerciseTypeSimulation
	}
	difficulty := sub.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyNormal
	}
	score, timeSpent := *sub.Score, *sub.TimeSpent
	key := domain.ExerciseKey{LearnerID: learnerID, ExerciseID: sub.ExerciseID, ExerciseType: sub.ExerciseType}

	unlock := s.locks.Lock(key)
	defer unlock()

	// The estimate reflects history before this attempt.
	before := s.aggregator.Summarize(ctx, learnerID)
	estimate := progress.EstimateCompletionSeconds(before.Value, sub.ExerciseID)

	xp := adaptive.ComputeXP(
		domain.BaseXP(sub.ExerciseID),
		difficulty,
		score,
		float64(timeSpent) < estimate,
		sub.HintsUsed == 0,
	)

	now := s.now()
	record, err := s.store.UpdateProgress(ctx, key, func(cur *domain.ProgressRecord) (*domain.ProgressRecord, error) {
		if cur == nil {
			cur = domain.NewProgressRecord(key, now)
		}
		cur.ApplyAttempt(domain.Attempt{
			Score:        score,
			TimeSpent:    timeSpent,
			HintsUsed:    sub.HintsUsed,
			MistakesMade: sub.MistakesMade,
			XPEarned:     xp,
		}, now)
		return cur, nil
	})
	if err != nil {
		return nil, persistenceErr("save progress", err)
	}

	for _, name := range domain.LevelSkills(sub.ExerciseID) {
		_, err := s.skills.Assess(ctx, skill.Input{
			LearnerID:    learnerID,
			SkillName:    name,
			ExerciseID:   sub.ExerciseID,
			ExerciseType: sub.ExerciseType,
			Score:        score,
			MaxScore:     domain.DefaultMaxScore,
		})
		if err != nil {
			slog.Warn("skill assessment failed", "learner_id", learnerID, "skill", name, "error", err)
		}
	}

	earned, err := s.achievements.Check(ctx, learnerID, achievement.TriggerLevelComplete, achievement.Event{
		ExerciseID:       sub.ExerciseID,
		ExerciseType:     sub.ExerciseType,
		Score:            score,
		HintsUsed:        sub.HintsUsed,
		TimeSpent:        timeSpent,
		EstimatedSeconds: estimate,
	})
	if err != nil {
		slog.Warn("achievement check failed", "learner_id", learnerID, "error", err)
	}

	if _, err := s.recommender.Generate(ctx, learnerID); err != nil {
		slog.Warn("recommendation generation failed", "learner_id", learnerID, "error", err)
	}

	after := s.aggregator.Summarize(ctx, learnerID)

	s.events.Publish(domain.NewProgressSubmittedEvent(record, after.Value, now))
	s.publishAchievements(learnerID, earned, achievement.TriggerLevelComplete)

	slog.Info("progress submitted",
		"learner_id", learnerID,
		"exercise_id", sub.ExerciseID,
		"exercise_type", sub.ExerciseType,
		"status", record.Status,
		"xp", xp,
		"achievements", len(earned),
	)

	if earned == nil {
		earned = []domain.Achievement{}
	}
	return &SubmitResult{
		XPEarned:     xp,
		Achievements: earned,
		Summary:      after.Value,
		Progress:     record,
	}, nil
}

// StartExercise marks an exercise as in progress, creating its record when
// needed. Completed exercises are returned unchanged.
func (s *Service) StartExercise(ctx context.Context, learnerID uuid.UUID, exerciseID int, exerciseType string) (*domain.ProgressRecord, error) {
	key, err := exerciseKey(learnerID, exerciseID, exerciseType)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	now := s.now()
	record, err := s.store.UpdateProgress(ctx, key, func(cur *domain.ProgressRecord) (*domain.ProgressRecord, error) {
		if cur == nil {
			cur = domain.NewProgressRecord(key, now)
		}
		cur.Start(now)
		return cur, nil
	})
	if err != nil {
		return nil, persistenceErr("start exercise", err)
	}
	return record, nil
}

// ResetProgress deletes the learner's record for an exercise.
func (s *Service) ResetProgress(ctx context.Context, learnerID uuid.UUID, exerciseID int, exerciseType string) error {
	key, err := exerciseKey(learnerID, exerciseID, exerciseType)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.store.DeleteProgress(ctx, key); err != nil {
		return persistenceErr("reset progress", err)
	}
	slog.Info("progress reset", "learner_id", learnerID, "exercise_id", exerciseID, "exercise_type", key.ExerciseType)
	return nil
}

// Summary returns the learner's progress summary.
func (s *Service) Summary(ctx context.Context, learnerID uuid.UUID) domain.Advisory[domain.Summary] {
	return s.aggregator.Summarize(ctx, learnerID)
}

// Stats returns per-level statistics of the simulation track.
func (s *Service) Stats(ctx context.Context, learnerID uuid.UUID) (*progress.Stats, error) {
	st, err := s.aggregator.Stats(ctx, learnerID)
	if err != nil {
		return nil, persistenceErr("stats", err)
	}
	return st, nil
}

func exerciseKey(learnerID uuid.UUID, exerciseID int, exerciseType string) (domain.ExerciseKey, error) {
	if learnerID == uuid.Nil {
		return domain.ExerciseKey{}, domain.NewValidationError("learner_id", "is required")
	}
	if exerciseID <= 0 {
		return domain.ExerciseKey{}, domain.NewValidationError("exercise_id", "must be positive")
	}
	if exerciseType == "" {
		exerciseType = domain.ExerciseTypeSimulation
	}
	return domain.ExerciseKey{LearnerID: learnerID, ExerciseID: exerciseID, ExerciseType: exerciseType}, nil
}

func (s *Service) publishAchievements(learnerID uuid.UUID, earned []domain.Achievement, trigger string) {
	now := s.now()
	for _, a := range earned {
		s.events.Publish(domain.NewAchievementUnlockedEvent(learnerID, a, trigger, now))
	}
}
