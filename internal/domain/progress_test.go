package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestProgressRecord_ApplyAttempt(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		score          float64
		wantStatus     ProgressStatus
		wantCompletion float64
	}{
		{"passing", 85, StatusCompleted, 100},
		{"exactly passing", 70, StatusCompleted, 100},
		{"failing", 35, StatusFailed, 50},
		{"zero", 0, StatusFailed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewProgressRecord(ExerciseKey{LearnerID: uuid.New(), ExerciseID: 1, ExerciseType: ExerciseTypeSimulation}, now)
			rec.ApplyAttempt(Attempt{Score: tt.score, TimeSpent: 300, XPEarned: 42}, now)

			if rec.Status != tt.wantStatus {
				t.Errorf("Status = %v; want %v", rec.Status, tt.wantStatus)
			}
			if rec.CompletionPercentage != tt.wantCompletion {
				t.Errorf("CompletionPercentage = %v; want %v", rec.CompletionPercentage, tt.wantCompletion)
			}
			if rec.Attempts != 1 {
				t.Errorf("Attempts = %d; want 1", rec.Attempts)
			}
			if (rec.CompletionPercentage == 100) != (rec.Status == StatusCompleted) {
				t.Errorf("completion %v inconsistent with status %v", rec.CompletionPercentage, rec.Status)
			}
			if rec.StartedAt == nil {
				t.Error("StartedAt should be set on first attempt")
			}
		})
	}
}

func TestProgressRecord_AttemptsIncrement(t *testing.T) {
	now := time.Now()
	rec := NewProgressRecord(ExerciseKey{LearnerID: uuid.New(), ExerciseID: 2, ExerciseType: ExerciseTypeSimulation}, now)
	for i := 0; i < 3; i++ {
		rec.ApplyAttempt(Attempt{Score: 50}, now)
	}
	if rec.Attempts != 3 {
		t.Errorf("Attempts = %d; want 3", rec.Attempts)
	}
}

func TestProgressRecord_StartKeepsCompleted(t *testing.T) {
	now := time.Now()
	rec := NewProgressRecord(ExerciseKey{LearnerID: uuid.New(), ExerciseID: 1, ExerciseType: ExerciseTypeSimulation}, now)
	rec.ApplyAttempt(Attempt{Score: 90}, now)
	rec.Start(now.Add(time.Hour))
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %v; want completed", rec.Status)
	}
}

func TestRankForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want Rank
	}{
		{0, RankNovice},
		{99, RankNovice},
		{100, RankApprentice},
		{499, RankApprentice},
		{500, RankGuardian},
		{1000, RankExpert},
		{1999, RankExpert},
		{2000, RankMaster},
	}
	for _, tt := range tests {
		if got := RankForXP(tt.xp); got != tt.want {
			t.Errorf("RankForXP(%d) = %v; want %v", tt.xp, got, tt.want)
		}
	}
}

func TestParseRecommendationAction(t *testing.T) {
	for _, action := range []string{"accept", "dismiss", "complete"} {
		status, err := ParseRecommendationAction(action)
		if err != nil {
			t.Fatalf("ParseRecommendationAction(%q) error = %v", action, err)
		}
		if string(status) != action {
			t.Errorf("status = %q; want %q", status, action)
		}
	}

	_, err := ParseRecommendationAction("snooze")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v; want ErrValidation", err)
	}
}

func TestPreferencesPatch(t *testing.T) {
	now := time.Now()
	prefs := DefaultPreferences(uuid.New(), now)

	hard := DifficultyHard
	minimal := HintMinimal
	patch := PreferencesPatch{DifficultyPreference: &hard, HintFrequency: &minimal}
	if err := patch.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	prefs.Apply(patch, now)

	if prefs.DifficultyPreference != DifficultyHard {
		t.Errorf("DifficultyPreference = %v; want hard", prefs.DifficultyPreference)
	}
	if prefs.HintFrequency != HintMinimal {
		t.Errorf("HintFrequency = %v; want minimal", prefs.HintFrequency)
	}
	if prefs.LearningStyle != StyleBalanced {
		t.Errorf("LearningStyle = %v; want unchanged balanced", prefs.LearningStyle)
	}
	if d, ok := prefs.ExplicitDifficulty(); !ok || d != DifficultyHard {
		t.Errorf("ExplicitDifficulty() = %v, %v; want hard, true", d, ok)
	}

	bogus := Pace("warp")
	if err := (PreferencesPatch{PreferredPace: &bogus}).Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("Validate() error = %v; want ErrValidation", err)
	}
}

func TestErrorWrapping(t *testing.T) {
	for _, err := range []error{ErrProgressNotFound, ErrPreferencesNotFound, ErrRecommendationNotFound} {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%v should wrap ErrNotFound", err)
		}
	}
}
