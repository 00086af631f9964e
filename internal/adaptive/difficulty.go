// Package adaptive holds the per-learner tuning policies: recommended
// difficulty, XP rewards, hint timing and tutorial adaptation.
package adaptive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Summarizer provides the learner's progress summary.
type Summarizer interface {
	Summarize(ctx context.Context, learnerID uuid.UUID) domain.Advisory[domain.Summary]
}

// PreferencesReader loads stored preferences. A missing row is reported
// with an error wrapping domain.ErrNotFound.
type PreferencesReader interface {
	GetPreferences(ctx context.Context, learnerID uuid.UUID) (*domain.Preferences, error)
}

// Difficulty score thresholds.
const (
	hardThreshold   = 85.0
	normalThreshold = 70.0
)

// DifficultyAdapter recommends the difficulty a learner should play at.
type DifficultyAdapter struct {
	summaries Summarizer
	prefs     PreferencesReader
}

// NewDifficultyAdapter creates a difficulty adapter.
func NewDifficultyAdapter(summaries Summarizer, prefs PreferencesReader) *DifficultyAdapter {
	return &DifficultyAdapter{summaries: summaries, prefs: prefs}
}

// Recommend returns the difficulty for the learner on the given exercise.
// An explicit preference always wins. Read failures fall back to normal.
func (a *DifficultyAdapter) Recommend(ctx context.Context, learnerID uuid.UUID, exerciseID int, exerciseType string) domain.Advisory[domain.Difficulty] {
	prefs, err := loadPreferences(ctx, a.prefs, learnerID)
	if err != nil {
		return a.fallback(learnerID, exerciseID, err)
	}

	if d, ok := prefs.ExplicitDifficulty(); ok {
		return domain.Computed(d)
	}

	summary := a.summaries.Summarize(ctx, learnerID)
	if summary.Fallback {
		return a.fallback(learnerID, exerciseID, summary.Err)
	}
	if summary.Value.CompletedCount == 0 {
		return domain.Computed(domain.DifficultyNormal)
	}

	return domain.Computed(DifficultyForScore(Score(summary.Value)))
}

func (a *DifficultyAdapter) fallback(learnerID uuid.UUID, exerciseID int, err error) domain.Advisory[domain.Difficulty] {
	slog.Warn("difficulty fallback", "learner_id", learnerID, "exercise_id", exerciseID, "error", err)
	return domain.FallbackTo(domain.DifficultyNormal, err)
}

// Score blends average score and completion rate into a 0..100 value.
func Score(s domain.Summary) float64 {
	return s.AverageScore*0.6 + s.CompletionRate()*100*0.4
}

// DifficultyForScore maps a difficulty score to a difficulty.
func DifficultyForScore(score float64) domain.Difficulty {
	switch {
	case score >= hardThreshold:
		return domain.DifficultyHard
	case score >= normalThreshold:
		return domain.DifficultyNormal
	default:
		return domain.DifficultyEasy
	}
}

// loadPreferences returns nil preferences when none are stored.
func loadPreferences(ctx context.Context, r PreferencesReader, learnerID uuid.UUID) (*domain.Preferences, error) {
	prefs, err := r.GetPreferences(ctx, learnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return prefs, nil
}
