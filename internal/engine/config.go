package engine

import (
	"fmt"

	"github.com/felixgeelhaar/cyberquest/internal/achievement"
	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
)

// ConfigFromLocal resolves the learning and achievement sections of the
// local configuration.
func ConfigFromLocal(cfg *config.LocalConfig) (Config, error) {
	tiers, err := domain.TierPolicyByName(cfg.Learning.TierPolicy)
	if err != nil {
		return Config{}, err
	}
	rules := achievement.Rules{
		StreakMatch: cfg.Achievements.StreakMatch,
		AwardOnce:   cfg.Achievements.AwardOnce,
	}
	if err := rules.Validate(); err != nil {
		return Config{}, fmt.Errorf("achievements: %w", err)
	}
	return Config{TierPolicy: tiers, Achievements: rules}, nil
}
