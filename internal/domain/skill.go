package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tier is an ordinal proficiency classification.
type Tier string

const (
	TierNovice       Tier = "novice"
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
	TierExpert       Tier = "expert"
)

// Weak reports whether the tier warrants extra practice.
func (t Tier) Weak() bool {
	return t == TierNovice || t == TierBeginner
}

// TierPolicy maps a score percentage to a tier.
type TierPolicy struct {
	Name string
	// Floors lists the inclusive lower bound of each tier from highest to
	// lowest. Percentages below every floor classify as novice.
	Floors []TierFloor
}

// TierFloor is the lowest percentage that reaches Tier.
type TierFloor struct {
	Min  float64
	Tier Tier
}

// Named tier policies.
const (
	PolicyStandard = "standard"
	PolicyStrict   = "strict"
)

// StandardTiers: <20 novice, <40 beginner, <70 intermediate, <90 advanced.
var StandardTiers = TierPolicy{
	Name: PolicyStandard,
	Floors: []TierFloor{
		{Min: 90, Tier: TierExpert},
		{Min: 70, Tier: TierAdvanced},
		{Min: 40, Tier: TierIntermediate},
		{Min: 20, Tier: TierBeginner},
	},
}

// StrictTiers: >=90 expert, >=80 advanced, >=70 intermediate, >=50 beginner.
var StrictTiers = TierPolicy{
	Name: PolicyStrict,
	Floors: []TierFloor{
		{Min: 90, Tier: TierExpert},
		{Min: 80, Tier: TierAdvanced},
		{Min: 70, Tier: TierIntermediate},
		{Min: 50, Tier: TierBeginner},
	},
}

// TierPolicyByName resolves a configured policy name. Empty means standard.
func TierPolicyByName(name string) (TierPolicy, error) {
	switch name {
	case "", PolicyStandard:
		return StandardTiers, nil
	case PolicyStrict:
		return StrictTiers, nil
	}
	return TierPolicy{}, fmt.Errorf("unknown tier policy %q", name)
}

// Classify returns the tier for a percentage in [0,100].
func (p TierPolicy) Classify(percentage float64) Tier {
	for _, f := range p.Floors {
		if percentage >= f.Min {
			return f.Tier
		}
	}
	return TierNovice
}

// SkillAssessment is one scored observation of a named skill.
type SkillAssessment struct {
	ID           uuid.UUID `json:"id"`
	LearnerID    uuid.UUID `json:"learner_id"`
	SkillName    string    `json:"skill_name"`
	ExerciseID   int       `json:"exercise_id"`
	ExerciseType string    `json:"exercise_type"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Tier         Tier      `json:"tier"`
	AssessedAt   time.Time `json:"assessed_at"`
}
