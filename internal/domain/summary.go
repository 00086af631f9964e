package domain

// Rank is the title earned from accumulated XP.
type Rank string

const (
	RankNovice     Rank = "Novice"
	RankApprentice Rank = "Apprentice"
	RankGuardian   Rank = "Guardian"
	RankExpert     Rank = "Expert"
	RankMaster     Rank = "Master"
)

// RankForXP maps total XP to a rank.
func RankForXP(xp int) Rank {
	switch {
	case xp < 100:
		return RankNovice
	case xp < 500:
		return RankApprentice
	case xp < 1000:
		return RankGuardian
	case xp < 2000:
		return RankExpert
	default:
		return RankMaster
	}
}

// Summary is the aggregate view of a learner's progress.
type Summary struct {
	TotalExercises   int     `json:"total_exercises"`
	CompletedCount   int     `json:"completed_count"`
	TotalXP          int     `json:"total_xp"`
	TotalTimeSeconds int     `json:"total_time_seconds"`
	AverageScore     float64 `json:"average_score"`
	Rank             Rank    `json:"rank"`
	Streak           int     `json:"streak"`
}

// EmptySummary is the zeroed summary of a learner with no progress.
func EmptySummary() Summary {
	return Summary{Rank: RankNovice}
}

// CompletionRate is completed over attempted exercises.
func (s Summary) CompletionRate() float64 {
	if s.TotalExercises == 0 {
		return 0
	}
	return float64(s.CompletedCount) / float64(s.TotalExercises)
}
