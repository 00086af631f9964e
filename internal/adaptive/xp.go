package adaptive

import (
	"math"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
)

// Bonus multipliers
const (
	timeBonusMultiplier    = 1.2
	noHintsBonusMultiplier = 1.1
)

// ComputeXP returns the reward for one attempt. The performance multiplier
// ranges from 0.5 at 0% to 1.5 at 100%. Scores outside [0,100] return
// baseXP unchanged.
func ComputeXP(baseXP int, difficulty domain.Difficulty, scorePct float64, timeBonus, noHintsBonus bool) int {
	if math.IsNaN(scorePct) || scorePct < 0 || scorePct > 100 {
		return baseXP
	}

	xp := float64(baseXP) * difficulty.Multiplier()
	xp *= 0.5 + scorePct/100.0
	if timeBonus {
		xp *= timeBonusMultiplier
	}
	if noHintsBonus {
		xp *= noHintsBonusMultiplier
	}
	return int(xp)
}
