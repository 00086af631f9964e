package domain

import (
	"time"

	"github.com/google/uuid"
)

// HintFrequency controls how eagerly hints are offered.
type HintFrequency string

const (
	HintMinimal  HintFrequency = "minimal"
	HintNormal   HintFrequency = "normal"
	HintFrequent HintFrequency = "frequent"
)

// Pace is the tutorial pacing a learner prefers.
type Pace string

const (
	PaceSlow   Pace = "slow"
	PaceNormal Pace = "normal"
	PaceFast   Pace = "fast"
)

// LearningStyle is the presentation style a learner prefers.
type LearningStyle string

const (
	StyleBalanced    LearningStyle = "balanced"
	StyleVisual      LearningStyle = "visual"
	StyleHandsOn     LearningStyle = "hands_on"
	StyleTheoretical LearningStyle = "theoretical"
)

// Preferences are the per-learner adaptation settings.
type Preferences struct {
	LearnerID            uuid.UUID     `json:"learner_id"`
	LearningStyle        LearningStyle `json:"learning_style"`
	DifficultyPreference Difficulty    `json:"difficulty_preference"`
	HintFrequency        HintFrequency `json:"hint_frequency"`
	PreferredPace        Pace          `json:"preferred_pace"`
	TutorialSkipAllowed  bool          `json:"tutorial_skip_allowed"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// DefaultPreferences returns the settings a new learner starts with.
func DefaultPreferences(learnerID uuid.UUID, now time.Time) *Preferences {
	return &Preferences{
		LearnerID:            learnerID,
		LearningStyle:        StyleBalanced,
		DifficultyPreference: DifficultyAdaptive,
		HintFrequency:        HintNormal,
		PreferredPace:        PaceNormal,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// PreferencesPatch is a partial update. Nil fields are left unchanged.
type PreferencesPatch struct {
	LearningStyle        *LearningStyle `json:"learning_style,omitempty"`
	DifficultyPreference *Difficulty    `json:"difficulty_preference,omitempty"`
	HintFrequency        *HintFrequency `json:"hint_frequency,omitempty"`
	PreferredPace        *Pace          `json:"preferred_pace,omitempty"`
	TutorialSkipAllowed  *bool          `json:"tutorial_skip_allowed,omitempty"`
}

// Validate rejects values outside the known enums.
func (p PreferencesPatch) Validate() error {
	if p.LearningStyle != nil {
		switch *p.LearningStyle {
		case StyleBalanced, StyleVisual, StyleHandsOn, StyleTheoretical:
		default:
			return NewValidationError("learning_style", "unknown style "+string(*p.LearningStyle))
		}
	}
	if p.DifficultyPreference != nil && !p.DifficultyPreference.ValidPreference() {
		return NewValidationError("difficulty_preference", "unknown difficulty "+string(*p.DifficultyPreference))
	}
	if p.HintFrequency != nil {
		switch *p.HintFrequency {
		case HintMinimal, HintNormal, HintFrequent:
		default:
			return NewValidationError("hint_frequency", "unknown frequency "+string(*p.HintFrequency))
		}
	}
	if p.PreferredPace != nil {
		switch *p.PreferredPace {
		case PaceSlow, PaceNormal, PaceFast:
		default:
			return NewValidationError("preferred_pace", "unknown pace "+string(*p.PreferredPace))
		}
	}
	return nil
}

// Apply copies the set fields of patch onto p.
func (p *Preferences) Apply(patch PreferencesPatch, now time.Time) {
	if patch.LearningStyle != nil {
		p.LearningStyle = *patch.LearningStyle
	}
	if patch.DifficultyPreference != nil {
		p.DifficultyPreference = *patch.DifficultyPreference
	}
	if patch.HintFrequency != nil {
		p.HintFrequency = *patch.HintFrequency
	}
	if patch.PreferredPace != nil {
		p.PreferredPace = *patch.PreferredPace
	}
	if patch.TutorialSkipAllowed != nil {
		p.TutorialSkipAllowed = *patch.TutorialSkipAllowed
	}
	p.UpdatedAt = now
}

// ExplicitDifficulty returns the preferred difficulty when the learner has
// opted out of adaptation.
func (p *Preferences) ExplicitDifficulty() (Difficulty, bool) {
	if p == nil || p.DifficultyPreference == "" || p.DifficultyPreference == DifficultyAdaptive {
		return "", false
	}
	return p.DifficultyPreference, true
}
