package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

type fakeStore struct {
	records    []*domain.ProgressRecord
	actions    []*domain.ActionLogEntry
	progErr    error
	actionsErr error
}

func (f *fakeStore) ListProgress(_ context.Context, _ uuid.UUID, exerciseType string) ([]*domain.ProgressRecord, error) {
	if f.progErr != nil {
		return nil, f.progErr
	}
	var out []*domain.ProgressRecord
	for _, r := range f.records {
		if exerciseType == "" || r.ExerciseType == exerciseType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActionLog(_ context.Context, _ uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error) {
	if f.actionsErr != nil {
		return nil, f.actionsErr
	}
	var out []*domain.ActionLogEntry
	for _, e := range f.actions {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 5, 20, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func actionAt(daysAgo int) *domain.ActionLogEntry {
	return &domain.ActionLogEntry{ActionType: domain.ActionStart, Timestamp: fixedNow.AddDate(0, 0, -daysAgo).Add(-time.Hour)}
}

func TestCompute(t *testing.T) {
	records := []*domain.ProgressRecord{
		{Status: domain.StatusCompleted, Score: 90, XPEarned: 120, TimeSpent: 600},
		{Status: domain.StatusFailed, Score: 45, XPEarned: 60, TimeSpent: 300},
		{Status: domain.StatusInProgress, Score: 0, TimeSpent: 60},
	}

	s := Compute(records)

	if s.TotalExercises != 3 {
		t.Errorf("TotalExercises = %d; want 3", s.TotalExercises)
	}
	if s.CompletedCount != 1 {
		t.Errorf("CompletedCount = %d; want 1", s.CompletedCount)
	}
	if s.TotalXP != 180 {
		t.Errorf("TotalXP = %d; want 180", s.TotalXP)
	}
	if s.TotalTimeSeconds != 960 {
		t.Errorf("TotalTimeSeconds = %d; want 960", s.TotalTimeSeconds)
	}
	// Zero scores are excluded from the mean.
	if s.AverageScore != 67.5 {
		t.Errorf("AverageScore = %v; want 67.5", s.AverageScore)
	}
	if s.Rank != domain.RankApprentice {
		t.Errorf("Rank = %v; want Apprentice", s.Rank)
	}
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil)
	if s.AverageScore != 0 || s.Rank != domain.RankNovice {
		t.Errorf("Compute(nil) = %+v; want zero average and Novice", s)
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name    string
		daysAgo []int
		want    int
	}{
		{"none", nil, 0},
		{"three consecutive", []int{0, 1, 2}, 3},
		{"gap breaks streak", []int{0, 1, 3}, 2},
		{"not active today", []int{1, 2, 3}, 0},
		{"duplicates on same day", []int{0, 0, 1}, 2},
		{"outside window ignored", []int{0, 1, 2, 8}, 3},
		{"capped at window", []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			for _, d := range tt.daysAgo {
				store.actions = append(store.actions, actionAt(d))
			}
			agg := NewAggregator(store, clock)

			got, err := agg.Streak(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("Streak() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Streak() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestCountStreak_IgnoresOldEntriesEvenWhenPassedIn(t *testing.T) {
	var ts []time.Time
	for d := 0; d < 10; d++ {
		ts = append(ts, fixedNow.AddDate(0, 0, -d))
	}
	if got := CountStreak(ts, fixedNow, 7); got != 7 {
		t.Errorf("CountStreak() = %d; want 7", got)
	}
}

func TestSummarize(t *testing.T) {
	store := &fakeStore{
		records: []*domain.ProgressRecord{{Status: domain.StatusCompleted, Score: 100, XPEarned: 50}},
		actions: []*domain.ActionLogEntry{actionAt(0), actionAt(1)},
	}
	agg := NewAggregator(store, clock)

	res := agg.Summarize(context.Background(), uuid.New())
	if res.Fallback {
		t.Fatalf("Summarize() fallback: %v", res.Err)
	}
	if res.Value.CompletedCount != 1 || res.Value.Streak != 2 {
		t.Errorf("Summarize() = %+v; want 1 completed and streak 2", res.Value)
	}
}

func TestSummarize_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"progress read fails", &fakeStore{progErr: errors.New("db down")}},
		{"action log read fails", &fakeStore{actionsErr: errors.New("db down")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewAggregator(tt.store, clock).Summarize(context.Background(), uuid.New())
			if !res.Fallback || res.Err == nil {
				t.Fatalf("Summarize() = %+v; want fallback with error", res)
			}
			if res.Value != domain.EmptySummary() {
				t.Errorf("Value = %+v; want empty summary", res.Value)
			}
		})
	}
}

func TestEstimateCompletionSeconds(t *testing.T) {
	tests := []struct {
		name     string
		summary  domain.Summary
		exercise int
		want     float64
	}{
		{"no history uses level default", domain.Summary{}, 1, 900},
		{"under a minute uses level default", domain.Summary{TotalTimeSeconds: 59}, 3, 1500},
		{"unknown level default", domain.Summary{}, 42, 1200},
		{"historical average", domain.Summary{TotalTimeSeconds: 1200, CompletedCount: 2}, 1, 600},
		{"history without completions", domain.Summary{TotalTimeSeconds: 300}, 1, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateCompletionSeconds(tt.summary, tt.exercise); got != tt.want {
				t.Errorf("EstimateCompletionSeconds() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	store := &fakeStore{records: []*domain.ProgressRecord{
		{ExerciseID: 1, ExerciseType: domain.ExerciseTypeSimulation, Status: domain.StatusCompleted, Score: 80, XPEarned: 100, TimeSpent: 600},
		{ExerciseID: 2, ExerciseType: domain.ExerciseTypeSimulation, Status: domain.StatusInProgress, TimeSpent: 120},
		{ExerciseID: 1, ExerciseType: domain.ExerciseTypeTeamMode, Status: domain.StatusCompleted, Score: 95, XPEarned: 200},
	}}

	st, err := NewAggregator(store, clock).Stats(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.CompletedLevels != 1 || st.InProgressLevels != 1 {
		t.Errorf("levels = %d completed, %d in progress; want 1, 1", st.CompletedLevels, st.InProgressLevels)
	}
	if st.TotalXP != 100 {
		t.Errorf("TotalXP = %d; want 100", st.TotalXP)
	}
	if st.CompletionPercentage != 20 {
		t.Errorf("CompletionPercentage = %v; want 20", st.CompletionPercentage)
	}
	if len(st.LevelProgress) != 2 {
		t.Errorf("LevelProgress has %d entries; want 2", len(st.LevelProgress))
	}
}
