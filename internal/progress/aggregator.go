// Package progress aggregates a learner's progress records and activity
// log into summary statistics.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// StreakWindowDays is the number of calendar days, today included, that the
// streak looks back over. Longer streaks are reported as this value.
const StreakWindowDays = 7

// Store is the persistence the aggregator reads from.
type Store interface {
	ListProgress(ctx context.Context, learnerID uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error)
	ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error)
}

// Aggregator computes progress summaries.
type Aggregator struct {
	store Store
	now   func() time.Time
}

// NewAggregator creates an aggregator. A nil clock uses time.Now.
func NewAggregator(store Store, clock func() time.Time) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{store: store, now: clock}
}

// Summarize computes the learner's summary. Read failures yield a zeroed
// summary flagged as a fallback.
func (a *Aggregator) Summarize(ctx context.Context, learnerID uuid.UUID) domain.Advisory[domain.Summary] {
	records, err := a.store.ListProgress(ctx, learnerID, "")
	if err != nil {
		slog.Warn("summary fallback", "learner_id", learnerID, "error", err)
		return domain.FallbackTo(domain.EmptySummary(), fmt.Errorf("list progress: %w", err))
	}

	summary := Compute(records)

	streak, err := a.Streak(ctx, learnerID)
	if err != nil {
		slog.Warn("summary fallback", "learner_id", learnerID, "error", err)
		return domain.FallbackTo(domain.EmptySummary(), err)
	}
	summary.Streak = streak

	return domain.Computed(summary)
}

// Compute derives the record-based part of a summary. Streak is left zero.
func Compute(records []*domain.ProgressRecord) domain.Summary {
	s := domain.Summary{TotalExercises: len(records)}

	var scoreSum float64
	var scored int
	for _, r := range records {
		if r.Status == domain.StatusCompleted {
			s.CompletedCount++
		}
		s.TotalXP += r.XPEarned
		s.TotalTimeSeconds += r.TimeSpent
		if r.Score > 0 {
			scoreSum += r.Score
			scored++
		}
	}
	if scored > 0 {
		s.AverageScore = round1(scoreSum / float64(scored))
	}
	s.Rank = domain.RankForXP(s.TotalXP)
	return s
}

// Streak counts consecutive active days ending today.
func (a *Aggregator) Streak(ctx context.Context, learnerID uuid.UUID) (int, error) {
	now := a.now()
	today := startOfDay(now)
	since := today.AddDate(0, 0, -(StreakWindowDays - 1))

	entries, err := a.store.ListActionLog(ctx, learnerID, since)
	if err != nil {
		return 0, fmt.Errorf("list action log: %w", err)
	}

	times := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		times = append(times, e.Timestamp)
	}
	return CountStreak(times, now, StreakWindowDays), nil
}

// CountStreak walks back from the calendar day of now while each day has at
// least one timestamp. Days older than window are ignored.
func CountStreak(timestamps []time.Time, now time.Time, window int) int {
	loc := now.Location()
	days := make(map[time.Time]bool, len(timestamps))
	for _, ts := range timestamps {
		days[startOfDay(ts.In(loc))] = true
	}

	streak := 0
	day := startOfDay(now)
	for streak < window && days[day] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// EstimateCompletionSeconds returns the expected duration of an exercise:
// the learner's historical whole minutes per completed exercise when any
// minute has been recorded, else the catalog default for the level.
func EstimateCompletionSeconds(s domain.Summary, exerciseID int) float64 {
	if minutes := s.TotalTimeSeconds / 60; minutes > 0 {
		return float64(minutes) / float64(max(1, s.CompletedCount)) * 60
	}
	return float64(domain.DefaultCompletionMinutes(exerciseID) * 60)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
