package adaptive

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/google/uuid"
)

// HintPolicy decides when to surface hints.
type HintPolicy struct {
	prefs PreferencesReader
}

// NewHintPolicy creates a hint policy.
func NewHintPolicy(prefs PreferencesReader) *HintPolicy {
	return &HintPolicy{prefs: prefs}
}

// HintDelay returns the struggle time in seconds before a hint is offered.
func HintDelay(freq domain.HintFrequency) float64 {
	switch freq {
	case domain.HintMinimal:
		return 180
	case domain.HintFrequent:
		return 30
	default:
		return 60
	}
}

// ShouldShow reports whether a hint is due after struggleSeconds.
func (p *HintPolicy) ShouldShow(ctx context.Context, learnerID uuid.UUID, struggleSeconds float64) domain.Advisory[bool] {
	prefs, err := loadPreferences(ctx, p.prefs, learnerID)
	if err != nil {
		slog.Warn("hint policy fallback", "learner_id", learnerID, "error", err)
		return domain.FallbackTo(struggleSeconds >= HintDelay(domain.HintNormal), err)
	}

	freq := domain.HintNormal
	if prefs != nil {
		freq = prefs.HintFrequency
	}
	return domain.Computed(struggleSeconds >= HintDelay(freq))
}
