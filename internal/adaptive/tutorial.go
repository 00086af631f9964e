package adaptive

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// ActionLogReader reads the learner's recent actions.
type ActionLogReader interface {
	ListActionLog(ctx context.Context, learnerID uuid.UUID, since time.Time) ([]*domain.ActionLogEntry, error)
}

const (
	skipLookback       = 7 * 24 * time.Hour
	paceLookback       = 14 * 24 * time.Hour
	skipMinCompletions = 2
	slowSessionSeconds = 1800.0
	fastSessionSeconds = 600.0
)

// TutorialConfig tells the client how to present a tutorial.
type TutorialConfig struct {
	Type        string               `json:"tutorial_type"`
	SkipAllowed bool                 `json:"skip_allowed"`
	Pace        domain.Pace          `json:"pace"`
	Style       domain.LearningStyle `json:"style"`
}

// TutorialAdvisor adapts tutorials to past behavior.
type TutorialAdvisor struct {
	prefs   PreferencesReader
	actions ActionLogReader
	now     func() time.Time
}

// NewTutorialAdvisor creates a tutorial advisor. A nil clock uses time.Now.
func NewTutorialAdvisor(prefs PreferencesReader, actions ActionLogReader, clock func() time.Time) *TutorialAdvisor {
	if clock == nil {
		clock = time.Now
	}
	return &TutorialAdvisor{prefs: prefs, actions: actions, now: clock}
}

// Config resolves skip, pace and style for tutorialType.
func (t *TutorialAdvisor) Config(ctx context.Context, learnerID uuid.UUID, tutorialType string) domain.Advisory[TutorialConfig] {
	cfg := TutorialConfig{Type: tutorialType, Pace: domain.PaceNormal, Style: domain.StyleBalanced}

	prefs, err := loadPreferences(ctx, t.prefs, learnerID)
	if err != nil {
		slog.Warn("tutorial fallback", "learner_id", learnerID, "error", err)
		return domain.FallbackTo(cfg, err)
	}

	if prefs != nil {
		cfg.Pace = prefs.PreferredPace
		cfg.Style = prefs.LearningStyle
		if prefs.TutorialSkipAllowed {
			skip, err := t.experienced(ctx, learnerID)
			if err != nil {
				slog.Warn("tutorial fallback", "learner_id", learnerID, "error", err)
				return domain.FallbackTo(cfg, err)
			}
			cfg.SkipAllowed = skip
		}
		return domain.Computed(cfg)
	}

	pace, err := t.observedPace(ctx, learnerID)
	if err != nil {
		slog.Warn("tutorial fallback", "learner_id", learnerID, "error", err)
		return domain.FallbackTo(cfg, err)
	}
	cfg.Pace = pace
	return domain.Computed(cfg)
}

// experienced reports whether the learner finished enough tutorials lately.
func (t *TutorialAdvisor) experienced(ctx context.Context, learnerID uuid.UUID) (bool, error) {
	entries, err := t.actions.ListActionLog(ctx, learnerID, t.now().Add(-skipLookback))
	if err != nil {
		return false, err
	}
	completions := 0
	for _, e := range entries {
		if e.ActionType == domain.ActionTutorialComplete {
			completions++
		}
	}
	return completions >= skipMinCompletions, nil
}

// observedPace derives a pace from the average session span.
func (t *TutorialAdvisor) observedPace(ctx context.Context, learnerID uuid.UUID) (domain.Pace, error) {
	entries, err := t.actions.ListActionLog(ctx, learnerID, t.now().Add(-paceLookback))
	if err != nil {
		return domain.PaceNormal, err
	}
	if len(entries) == 0 {
		return domain.PaceNormal, nil
	}

	avg := AverageSessionSeconds(entries)
	switch {
	case avg > slowSessionSeconds:
		return domain.PaceSlow, nil
	case avg < fastSessionSeconds:
		return domain.PaceFast, nil
	default:
		return domain.PaceNormal, nil
	}
}

// AverageSessionSeconds averages first-to-last span across sessions.
// Single-entry sessions count with a zero span.
func AverageSessionSeconds(entries []*domain.ActionLogEntry) float64 {
	type span struct{ first, last time.Time }
	sessions := make(map[string]*span)
	for _, e := range entries {
		s, ok := sessions[e.SessionID]
		if !ok {
			sessions[e.SessionID] = &span{first: e.Timestamp, last: e.Timestamp}
			continue
		}
		if e.Timestamp.Before(s.first) {
			s.first = e.Timestamp
		}
		if e.Timestamp.After(s.last) {
			s.last = e.Timestamp
		}
	}
	if len(sessions) == 0 {
		return 0
	}

	var total float64
	for _, s := range sessions {
		total += s.last.Sub(s.first).Seconds()
	}
	return total / float64(len(sessions))
}
