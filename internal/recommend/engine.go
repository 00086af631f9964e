// Package recommend generates time-bounded learning recommendations from a
// learner's aggregate state.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Rule parameters
const (
	maxWeakSkills = 2

	nextLevelConfidence  = 0.9
	skillConfidence      = 0.7
	difficultyConfidence = 0.6

	nextLevelTTL  = 7 * 24 * time.Hour
	skillTTL      = 14 * 24 * time.Hour
	difficultyTTL = 30 * 24 * time.Hour

	increaseAbove = 95.0
	decreaseBelow = 60.0
)

// Difficulty adjustment suggestions
const (
	SuggestIncrease = "increase"
	SuggestDecrease = "decrease"
)

// Store persists recommendations.
type Store interface {
	ListRecommendations(ctx context.Context, learnerID uuid.UUID, activeOnly bool, now time.Time) ([]*domain.Recommendation, error)
	UpsertRecommendation(ctx context.Context, rec *domain.Recommendation) error
}

// Summarizer provides the learner's progress summary.
type Summarizer interface {
	Summarize(ctx context.Context, learnerID uuid.UUID) domain.Advisory[domain.Summary]
}

// SkillReader provides the latest assessment per skill.
type SkillReader interface {
	Current(ctx context.Context, learnerID uuid.UUID) (map[string]*domain.SkillAssessment, error)
}

// Engine applies the recommendation rules.
type Engine struct {
	store     Store
	summaries Summarizer
	skills    SkillReader
	now       func() time.Time
}

// NewEngine creates a recommendation engine. A nil clock uses time.Now.
func NewEngine(store Store, summaries Summarizer, skills SkillReader, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, summaries: summaries, skills: skills, now: clock}
}

// Generate evaluates the rules, persists every proposal and returns the ones
// that were saved. A failed save does not stop the remaining proposals.
func (e *Engine) Generate(ctx context.Context, learnerID uuid.UUID) ([]*domain.Recommendation, error) {
	summary := e.summaries.Summarize(ctx, learnerID)
	if summary.Fallback {
		return nil, fmt.Errorf("summarize: %w", summary.Err)
	}
	skills, err := e.skills.Current(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("current skills: %w", err)
	}

	proposals := Propose(learnerID, summary.Value, skills, e.now())

	saved := make([]*domain.Recommendation, 0, len(proposals))
	var errs []error
	for _, rec := range proposals {
		if err := e.store.UpsertRecommendation(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("save %s recommendation: %w", rec.Type, err))
			continue
		}
		saved = append(saved, rec)
	}
	return saved, errors.Join(errs...)
}

// Propose evaluates the rules in order without persisting.
func Propose(learnerID uuid.UUID, s domain.Summary, skills map[string]*domain.SkillAssessment, now time.Time) []*domain.Recommendation {
	var recs []*domain.Recommendation

	if s.CompletedCount < domain.MaxLevel {
		recs = append(recs, nextLevel(learnerID, s.CompletedCount+1, now))
	}

	for _, name := range WeakSkills(skills, maxWeakSkills) {
		recs = append(recs, skillImprovement(learnerID, name, now))
	}

	if s.AverageScore > increaseAbove || s.AverageScore < decreaseBelow {
		recs = append(recs, difficultyAdjustment(learnerID, s.AverageScore, now))
	}

	return recs
}

// WeakSkills returns up to limit skills currently at a weak tier, in name
// order.
func WeakSkills(skills map[string]*domain.SkillAssessment, limit int) []string {
	var weak []string
	for name, a := range skills {
		if a.Tier.Weak() {
			weak = append(weak, name)
		}
	}
	sort.Strings(weak)
	if limit > 0 && len(weak) > limit {
		weak = weak[:limit]
	}
	return weak
}

func newRecommendation(learnerID uuid.UUID, t domain.RecommendationType, confidence float64, ttl time.Duration, now time.Time) *domain.Recommendation {
	return &domain.Recommendation{
		ID:         uuid.New(),
		LearnerID:  learnerID,
		Type:       t,
		Confidence: confidence,
		Status:     domain.RecPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func nextLevel(learnerID uuid.UUID, level int, now time.Time) *domain.Recommendation {
	rec := newRecommendation(learnerID, domain.RecNextLevel, nextLevelConfidence, nextLevelTTL, now)
	rec.TargetExerciseID = &level
	rec.TargetExerciseType = domain.ExerciseTypeSimulation
	rec.Payload = domain.RecommendationPayload{
		Title:       "Continue Your Journey: " + domain.LevelName(level),
		Description: fmt.Sprintf("You're ready to tackle level %d!", level),
		Reason:      "Based on your current progress",
	}
	return rec
}

func skillImprovement(learnerID uuid.UUID, skill string, now time.Time) *domain.Recommendation {
	rec := newRecommendation(learnerID, domain.RecSkillImprovement, skillConfidence, skillTTL, now)
	rec.TargetSkill = skill
	words := strings.ReplaceAll(skill, "_", " ")
	rec.Payload = domain.RecommendationPayload{
		Title:       "Improve Your " + titleCase(words) + " Skills",
		Description: "Practice exercises to strengthen your " + words + " abilities",
		Reason:      "This skill needs additional practice",
	}
	return rec
}

func difficultyAdjustment(learnerID uuid.UUID, avg float64, now time.Time) *domain.Recommendation {
	rec := newRecommendation(learnerID, domain.RecDifficultyAdjustment, difficultyConfidence, difficultyTTL, now)
	p := domain.RecommendationPayload{
		Title:       "Adjust Difficulty Level",
		Description: "Consider decreasing the difficulty level",
		Suggestion:  SuggestDecrease,
		Reason:      "Consider lowering the difficulty to build confidence.",
	}
	if avg > increaseAbove {
		p.Description = "Consider increasing the difficulty level"
		p.Suggestion = SuggestIncrease
		p.Reason = "You're excelling! Try a higher difficulty for more challenge."
	}
	rec.Payload = p
	return rec
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// List returns the learner's recommendations, newest first.
func (e *Engine) List(ctx context.Context, learnerID uuid.UUID, activeOnly bool) ([]*domain.Recommendation, error) {
	recs, err := e.store.ListRecommendations(ctx, learnerID, activeOnly, e.now())
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return recs, nil
}

// UpdateStatus records the learner's action on a recommendation. The action
// string becomes the new status.
func (e *Engine) UpdateStatus(ctx context.Context, learnerID, id uuid.UUID, action string) (*domain.Recommendation, error) {
	status, err := domain.ParseRecommendationAction(action)
	if err != nil {
		return nil, err
	}

	recs, err := e.store.ListRecommendations(ctx, learnerID, false, e.now())
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}

	for _, rec := range recs {
		if rec.ID != id {
			continue
		}
		now := e.now()
		rec.Status = status
		rec.ActedOnAt = &now
		if err := e.store.UpsertRecommendation(ctx, rec); err != nil {
			return nil, fmt.Errorf("save recommendation: %w", err)
		}
		return rec, nil
	}
	return nil, domain.ErrRecommendationNotFound
}
