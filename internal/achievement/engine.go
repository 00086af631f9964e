// Package achievement evaluates achievement triggers against a learner's
// summary and records awards in a ledger.
package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// Triggers
const (
	TriggerLevelComplete = "level_complete"
	TriggerDailyActivity = "daily_activity"
)

// Streak matching modes
const (
	StreakExact   = "exact"
	StreakAtLeast = "at_least"
)

const (
	speedFactor        = 0.7
	teamMasterMinScore = 90.0
)

// Rules tunes how awards are decided.
type Rules struct {
	// StreakMatch is StreakExact or StreakAtLeast.
	StreakMatch string
	// AwardOnce suppresses achievements already in the ledger.
	AwardOnce bool
}

// DefaultRules re-awards on every matching trigger and matches streaks
// exactly.
func DefaultRules() Rules {
	return Rules{StreakMatch: StreakExact}
}

// Validate checks the streak mode.
func (r Rules) Validate() error {
	switch r.StreakMatch {
	case "", StreakExact, StreakAtLeast:
		return nil
	}
	return fmt.Errorf("unknown streak match %q", r.StreakMatch)
}

// Event carries the submission fields level_complete rules read.
type Event struct {
	ExerciseID   int
	ExerciseType string
	Score        float64
	HintsUsed    int
	TimeSpent    int
	// EstimatedSeconds is the expected completion time before this attempt.
	EstimatedSeconds float64
}

// Store persists the award ledger.
type Store interface {
	AppendAwardedAchievement(ctx context.Context, a *domain.AwardedAchievement) error
	ListAwardedAchievements(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error)
}

// Summarizer provides the learner's progress summary.
type Summarizer interface {
	Summarize(ctx context.Context, learnerID uuid.UUID) domain.Advisory[domain.Summary]
}

// Engine checks and records achievements.
type Engine struct {
	store     Store
	summaries Summarizer
	rules     Rules
	now       func() time.Time
}

// NewEngine creates an achievement engine. A nil clock uses time.Now.
func NewEngine(store Store, summaries Summarizer, rules Rules, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if rules.StreakMatch == "" {
		rules.StreakMatch = StreakExact
	}
	return &Engine{store: store, summaries: summaries, rules: rules, now: clock}
}

// Check evaluates trigger against the learner's current summary and returns
// the achievements earned. Awards are appended to the ledger.
func (e *Engine) Check(ctx context.Context, learnerID uuid.UUID, trigger string, ev Event) ([]domain.Achievement, error) {
	if trigger != TriggerLevelComplete && trigger != TriggerDailyActivity {
		return nil, domain.NewValidationError("trigger", "must be level_complete or daily_activity")
	}

	summary := e.summaries.Summarize(ctx, learnerID)
	if summary.Fallback {
		return nil, fmt.Errorf("summarize: %w", summary.Err)
	}

	earned := Evaluate(trigger, summary.Value, ev, e.rules)
	if len(earned) == 0 {
		return nil, nil
	}

	if e.rules.AwardOnce {
		owned, err := e.awarded(ctx, learnerID)
		if err != nil {
			return nil, err
		}
		fresh := earned[:0]
		for _, a := range earned {
			if !owned[a.ID] {
				fresh = append(fresh, a)
			}
		}
		earned = fresh
	}

	now := e.now()
	for _, a := range earned {
		award := &domain.AwardedAchievement{LearnerID: learnerID, AchievementID: a.ID, AwardedAt: now}
		if err := e.store.AppendAwardedAchievement(ctx, award); err != nil {
			slog.Warn("failed to record achievement",
				"learner_id", learnerID,
				"achievement", a.ID,
				"error", err,
			)
		}
	}
	return earned, nil
}

// Awarded returns the learner's ledger, oldest first.
func (e *Engine) Awarded(ctx context.Context, learnerID uuid.UUID) ([]*domain.AwardedAchievement, error) {
	rows, err := e.store.ListAwardedAchievements(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list awarded achievements: %w", err)
	}
	return rows, nil
}

func (e *Engine) awarded(ctx context.Context, learnerID uuid.UUID) (map[string]bool, error) {
	rows, err := e.Awarded(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(rows))
	for _, r := range rows {
		owned[r.AchievementID] = true
	}
	return owned, nil
}

// Evaluate applies the trigger rules without touching the ledger.
func Evaluate(trigger string, s domain.Summary, ev Event, rules Rules) []domain.Achievement {
	var ids []string

	switch trigger {
	case TriggerLevelComplete:
		if s.CompletedCount == 1 {
			ids = append(ids, domain.AchFirstLevel)
		}
		if ev.Score == 100 {
			ids = append(ids, domain.AchPerfectionist)
		}
		if ev.HintsUsed == 0 {
			ids = append(ids, domain.AchNoHints)
		}
		if ev.EstimatedSeconds > 0 && float64(ev.TimeSpent) < ev.EstimatedSeconds*speedFactor {
			ids = append(ids, domain.AchSpeedDemon)
		}
		if s.CompletedCount >= domain.MaxLevel {
			ids = append(ids, domain.AchAllLevels)
		}
		if ev.ExerciseType == domain.ExerciseTypeTeamMode && ev.Score >= teamMasterMinScore {
			ids = append(ids, domain.AchBlueTeamMaster)
		}

	case TriggerDailyActivity:
		if id := streakAchievement(s.Streak, rules.StreakMatch); id != "" {
			ids = append(ids, id)
		}
	}

	out := make([]domain.Achievement, 0, len(ids))
	for _, id := range ids {
		if a, ok := domain.LookupAchievement(id); ok {
			out = append(out, a)
		}
	}
	return out
}

func streakAchievement(streak int, match string) string {
	if match == StreakAtLeast {
		switch {
		case streak >= 7:
			return domain.AchStreak7
		case streak >= 3:
			return domain.AchStreak3
		}
		return ""
	}
	switch streak {
	case 3:
		return domain.AchStreak3
	case 7:
		return domain.AchStreak7
	}
	return ""
}
