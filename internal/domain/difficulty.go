package domain

// Difficulty is the challenge level an exercise is played at.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"

	// DifficultyAdaptive is only valid as a preference. It defers to the
	// computed recommendation.
	DifficultyAdaptive Difficulty = "adaptive"
)

// Valid reports whether d is a playable difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// ValidPreference reports whether d may be stored as a learner preference.
func (d Difficulty) ValidPreference() bool {
	return d == DifficultyAdaptive || d.Valid()
}

// Multiplier returns the XP multiplier for the difficulty. Unknown values
// count as normal.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyEasy:
		return 0.8
	case DifficultyHard:
		return 1.5
	case DifficultyExpert:
		return 2.0
	default:
		return 1.0
	}
}
