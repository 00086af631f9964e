package progress

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Stats is the per-level view of the simulation track.
type Stats struct {
	TotalLevels          int                             `json:"total_levels"`
	CompletedLevels      int                             `json:"completed_levels"`
	InProgressLevels     int                             `json:"in_progress_levels"`
	TotalXP              int                             `json:"total_xp"`
	TotalTimeSpent       int                             `json:"total_time_spent"`
	AverageScore         float64                         `json:"average_score"`
	CompletionPercentage float64                         `json:"completion_percentage"`
	LevelProgress        map[int]*domain.ProgressRecord `json:"level_progress"`
}

// Stats computes track statistics. Only completed levels contribute XP and
// score to the totals.
func (a *Aggregator) Stats(ctx context.Context, learnerID uuid.UUID) (*Stats, error) {
	records, err := a.store.ListProgress(ctx, learnerID, domain.ExerciseTypeSimulation)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	st := &Stats{
		TotalLevels:   domain.MaxLevel,
		LevelProgress: make(map[int]*domain.ProgressRecord, len(records)),
	}

	var scoreSum float64
	for _, r := range records {
		st.LevelProgress[r.ExerciseID] = r
		switch r.Status {
		case domain.StatusCompleted:
			st.CompletedLevels++
			st.TotalXP += r.XPEarned
			scoreSum += r.Score
		case domain.StatusInProgress:
			st.InProgressLevels++
		}
		st.TotalTimeSpent += r.TimeSpent
	}
	if st.CompletedLevels > 0 {
		st.AverageScore = round1(scoreSum / float64(st.CompletedLevels))
	}
	st.CompletionPercentage = float64(st.CompletedLevels) / float64(st.TotalLevels) * 100

	return st, nil
}
