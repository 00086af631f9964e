package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/cyberquest/internal/achievement"
	"github.com/felixgeelhaar/cyberquest/internal/adaptive"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/patterns"
	"github.com/felixgeelhaar/cyberquest/internal/progress"
	"github.com/felixgeelhaar/cyberquest/internal/recommend"
	"github.com/google/uuid"
)

// GetDifficulty recommends a difficulty for the exercise.
func (s *Service) GetDifficulty(ctx context.Context, learnerID uuid.UUID, exerciseID int, exerciseType string) domain.Advisory[domain.Difficulty] {
	if exerciseType == "" {
		exerciseType = domain.ExerciseTypeSimulation
	}
	return s.difficulty.Recommend(ctx, learnerID, exerciseID, exerciseType)
}

// GetHintDecision reports whether a hint should be offered after
// struggleSeconds.
func (s *Service) GetHintDecision(ctx context.Context, learnerID uuid.UUID, struggleSeconds float64) domain.Advisory[bool] {
	return s.hints.ShouldShow(ctx, learnerID, struggleSeconds)
}

// TutorialConfig adapts a tutorial to the learner.
func (s *Service) TutorialConfig(ctx context.Context, learnerID uuid.UUID, tutorialType string) domain.Advisory[adaptive.TutorialConfig] {
	return s.tutorials.Config(ctx, learnerID, tutorialType)
}

// AnalyzePatterns summarizes the trailing windowDays of activity.
func (s *Service) AnalyzePatterns(ctx context.Context, learnerID uuid.UUID, windowDays int) *patterns.Analysis {
	return s.analyzer.Analyze(ctx, learnerID, windowDays)
}

// ListSkills returns the current assessment of each skill.
func (s *Service) ListSkills(ctx context.Context, learnerID uuid.UUID) (map[string]*domain.SkillAssessment, error) {
	skills, err := s.skills.Current(ctx, learnerID)
	if err != nil {
		return nil, persistenceErr("list skills", err)
	}
	return skills, nil
}

// ListRecommendations returns the learner's recommendations, newest first.
func (s *Service) ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool) ([]*domain.Recommendation, error) {
	recs, err := s.recommender.List(ctx, learnerID, activeOnly)
	if err != nil {
		return nil, persistenceErr("list recommendations", err)
	}
	return recs, nil
}

// ActOnRecommendation applies accept, dismiss or complete.
func (s *Service) ActOnRecommendation(ctx context.Context, learnerID, id uuid.UUID, action string) (*domain.Recommendation, error) {
	rec, err := s.recommender.UpdateStatus(ctx, learnerID, id, action)
	if err != nil {
		return nil, persistenceErr("act on recommendation", err)
	}
	return rec, nil
}

// GetOrCreatePreferences returns the learner's preferences, storing the
// defaults on first access.
func (s *Service) GetOrCreatePreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error) {
	if learnerID == uuid.Nil {
		return nil, domain.NewValidationError("learner_id", "is required")
	}
	prefs, err := s.store.GetPreferences(ctx, learnerID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, persistenceErr("get preferences", err)
	}

	prefs = domain.DefaultPreferences(learnerID, s.now())
	if err := s.store.UpsertPreferences(ctx, prefs); err != nil {
		return nil, persistenceErr("create preferences", err)
	}
	return prefs, nil
}

// UpdatePreferences applies the set fields of patch.
func (s *Service) UpdatePreferences(ctx context.Context, learnerID uuid.UUID, patch domain.PreferencesPatch) (*domain.Preferences, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	prefs, err := s.GetOrCreatePreferences(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	prefs.Apply(patch, s.now())
	if err := s.store.UpsertPreferences(ctx, prefs); err != nil {
		return nil, persistenceErr("update preferences", err)
	}
	return prefs, nil
}

// ActionInput is one client-reported interaction.
type ActionInput struct {
	SessionID    string          `json:"session_id,omitempty"`
	ExerciseID   int             `json:"exercise_id"`
	ExerciseType string          `json:"exercise_type,omitempty"`
	ActionType   string          `json:"action_type"`
	Payload      json.RawMessage `json:"action_data,omitempty"`
	Origin       *domain.Origin  `json:"-"`
}

// LogResult is the outcome of LogAction.
type LogResult struct {
	Entry        *domain.ActionLogEntry `json:"entry"`
	Achievements []domain.Achievement   `json:"achievements"`
}

// LogAction appends an action to the log. A daily_activity action also
// evaluates streak achievements.
func (s *Service) LogAction(ctx context.Context, learnerID uuid.UUID, in ActionInput) (*LogResult, error) {
	entry := &domain.ActionLogEntry{
		ID:           uuid.New(),
		LearnerID:    learnerID,
		SessionID:    in.SessionID,
		ExerciseID:   in.ExerciseID,
		ExerciseType: in.ExerciseType,
		ActionType:   in.ActionType,
		Payload:      in.Payload,
		Origin:       in.Origin,
		Timestamp:    s.now(),
	}
	if entry.SessionID == "" {
		entry.SessionID = uuid.NewString()
	}
	if entry.ExerciseType == "" {
		entry.ExerciseType = domain.ExerciseTypeSimulation
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.AppendActionLog(ctx, entry); err != nil {
		return nil, persistenceErr("append action", err)
	}
	s.events.Publish(domain.NewActionLoggedEvent(entry))

	result := &LogResult{Entry: entry, Achievements: []domain.Achievement{}}
	if entry.ActionType == domain.ActionDailyActivity {
		earned, err := s.CheckDailyActivity(ctx, learnerID)
		if err != nil {
			slog.Warn("streak check failed", "learner_id", learnerID, "error", err)
		} else {
			result.Achievements = earned
		}
	}
	return result, nil
}

// CheckDailyActivity evaluates streak achievements.
func (s *Service) CheckDailyActivity(ctx context.Context, learnerID uuid.UUID) ([]domain.Achievement, error) {
	earned, err := s.achievements.Check(ctx, learnerID, achievement.TriggerDailyActivity, achievement.Event{})
	if err != nil {
		return nil, fmt.Errorf("check daily activity: %w", err)
	}
	s.publishAchievements(learnerID, earned, achievement.TriggerDailyActivity)
	if earned == nil {
		earned = []domain.Achievement{}
	}
	return earned, nil
}

// Achievements returns the learner's award ledger.
func (s *Service) Achievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	rows, err := s.achievements.Awarded(ctx, learnerID)
	if err != nil {
		return nil, persistenceErr("list achievements", err)
	}
	return rows, nil
}

// Activity types
const (
	ActivitySimulation    = "simulation"
	ActivityTeamMode      = "blue_team_vs_red_team"
	ActivitySkillPractice = "skill_practice"
	ActivityReview        = "review"
	ActivityError         = "error"
)

const nextActivityScore = 85

// Activity is a suggested next step.
type Activity struct {
	Type             string            `json:"type"`
	ExerciseID       int               `json:"exercise_id,omitempty"`
	Difficulty       domain.Difficulty `json:"difficulty,omitempty"`
	Skill            string            `json:"skill,omitempty"`
	Reason           string            `json:"reason"`
	EstimatedMinutes int               `json:"estimated_time,omitempty"`
	XPPotential      int               `json:"xp_potential,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// SuggestNextActivity picks the next simulation level, then team mode, then
// weak-skill practice, then review.
func (s *Service) SuggestNextActivity(ctx context.Context, learnerID uuid.UUID) Activity {
	summary := s.aggregator.Summarize(ctx, learnerID)
	if summary.Fallback {
		return activityError(learnerID, summary.Err)
	}
	completed := summary.Value.CompletedCount

	if completed < domain.MaxLevel {
		next := completed + 1
		d := s.difficulty.Recommend(ctx, learnerID, next, domain.ExerciseTypeSimulation).Value
		return Activity{
			Type:             ActivitySimulation,
			ExerciseID:       next,
			Difficulty:       d,
			Reason:           fmt.Sprintf("Continue your cybersecurity journey with level %d", next),
			EstimatedMinutes: int(estimateMinutes(summary.Value, next)),
			XPPotential:      adaptive.ComputeXP(domain.BaseXP(next), d, nextActivityScore, false, false),
		}
	}

	team, err := s.store.GetProgress(ctx, domain.ExerciseKey{LearnerID: learnerID, ExerciseID: 1, ExerciseType: domain.ExerciseTypeTeamMode})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return activityError(learnerID, err)
	}
	if team == nil || team.Status != domain.StatusCompleted {
		return Activity{
			Type:             ActivityTeamMode,
			ExerciseID:       1,
			Difficulty:       s.difficulty.Recommend(ctx, learnerID, 1, domain.ExerciseTypeTeamMode).Value,
			Reason:           "Try a different learning approach with team-based scenarios",
			EstimatedMinutes: 20,
			XPPotential:      200,
		}
	}

	skills, err := s.skills.Current(ctx, learnerID)
	if err != nil {
		return activityError(learnerID, err)
	}
	if weak := recommend.WeakSkills(skills, 1); len(weak) > 0 {
		return Activity{
			Type:             ActivitySkillPractice,
			Skill:            weak[0],
			Reason:           "Strengthen your " + humanize(weak[0]) + " abilities",
			EstimatedMinutes: 15,
			XPPotential:      50,
		}
	}

	return Activity{
		Type:             ActivityReview,
		ExerciseID:       completed,
		Reason:           "Review previous levels to reinforce learning",
		EstimatedMinutes: 10,
		XPPotential:      25,
	}
}

func activityError(learnerID uuid.UUID, err error) Activity {
	slog.Warn("next activity fallback", "learner_id", learnerID, "error", err)
	return Activity{Type: ActivityError, Reason: "Unable to generate recommendation", Error: err.Error()}
}

func estimateMinutes(s domain.Summary, exerciseID int) float64 {
	return progress.EstimateCompletionSeconds(s, exerciseID) / 60
}

func humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
