package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RecommendationType identifies the rule that produced a recommendation.
type RecommendationType string

const (
	RecNextLevel            RecommendationType = "next_level"
	RecSkillImprovement     RecommendationType = "skill_improvement"
	RecDifficultyAdjustment RecommendationType = "difficulty_adjustment"
)

// RecommendationStatus tracks what the learner did with a recommendation.
type RecommendationStatus string

const (
	RecPending   RecommendationStatus = "pending"
	RecAccepted  RecommendationStatus = "accept"
	RecDismissed RecommendationStatus = "dismiss"
	RecCompleted RecommendationStatus = "complete"
)

// ParseRecommendationAction validates a learner action. The action string is
// stored verbatim as the new status.
func ParseRecommendationAction(action string) (RecommendationStatus, error) {
	switch s := RecommendationStatus(action); s {
	case RecAccepted, RecDismissed, RecCompleted:
		return s, nil
	}
	return "", NewValidationError("action", "must be one of accept, dismiss, complete")
}

// RecommendationPayload is the human-readable content of a recommendation.
type RecommendationPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// Recommendation is a time-bounded suggestion for a learner.
type Recommendation struct {
	ID                 uuid.UUID             `json:"id"`
	LearnerID          uuid.UUID             `json:"learner_id"`
	Type               RecommendationType    `json:"type"`
	TargetExerciseID   *int                  `json:"target_exercise_id,omitempty"`
	TargetExerciseType string                `json:"target_exercise_type,omitempty"`
	TargetSkill        string                `json:"target_skill,omitempty"`
	Payload            RecommendationPayload `json:"payload"`
	Confidence         float64               `json:"confidence"`
	Status             RecommendationStatus  `json:"status"`
	CreatedAt          time.Time             `json:"created_at"`
	ExpiresAt          time.Time             `json:"expires_at"`
	ActedOnAt          *time.Time            `json:"acted_on_at,omitempty"`
}

// Target returns the exercise id or skill name the recommendation points at.
func (r *Recommendation) Target() string {
	if r.TargetSkill != "" {
		return r.TargetSkill
	}
	if r.TargetExerciseID != nil {
		return r.TargetExerciseType + ":" + strconv.Itoa(*r.TargetExerciseID)
	}
	return r.Payload.Suggestion
}

// Active reports whether the recommendation is pending and unexpired.
func (r *Recommendation) Active(now time.Time) bool {
	return r.Status == RecPending && r.ExpiresAt.After(now)
}
