package domain

import (
	"time"

	"github.com/google/uuid"
)

// Achievement is a static catalog entry.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	XPBonus     int    `json:"xp_bonus"`
}

// Achievement ids
const (
	AchFirstLevel     = "first_level"
	AchSpeedDemon     = "speed_demon"
	AchPerfectionist  = "perfectionist"
	AchNoHints        = "no_hints"
	AchStreak3        = "streak_3"
	AchStreak7        = "streak_7"
	AchAllLevels      = "all_levels"
	AchBlueTeamMaster = "blue_team_master"
)

var achievements = []Achievement{
	{ID: AchFirstLevel, Name: "First Steps", Description: "Complete your first level", XPBonus: 50},
	{ID: AchSpeedDemon, Name: "Speed Demon", Description: "Complete a level in record time", XPBonus: 100},
	{ID: AchPerfectionist, Name: "Perfectionist", Description: "Complete a level with 100% score", XPBonus: 150},
	{ID: AchNoHints, Name: "Independent Learner", Description: "Complete a level without hints", XPBonus: 75},
	{ID: AchStreak3, Name: "3-Day Streak", Description: "Learn for 3 consecutive days", XPBonus: 100},
	{ID: AchStreak7, Name: "Week Warrior", Description: "Learn for 7 consecutive days", XPBonus: 250},
	{ID: AchAllLevels, Name: "Cyber Guardian", Description: "Complete all 5 levels", XPBonus: 500},
	{ID: AchBlueTeamMaster, Name: "Blue Team Master", Description: "Excel in blue team exercises", XPBonus: 200},
}

// Achievements returns the full catalog in display order.
func Achievements() []Achievement {
	return append([]Achievement(nil), achievements...)
}

// LookupAchievement returns the catalog entry for id.
func LookupAchievement(id string) (Achievement, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// AwardedAchievement records that a learner received an achievement.
type AwardedAchievement struct {
	LearnerID     uuid.UUID `json:"learner_id"`
	AchievementID string    `json:"achievement_id"`
	AwardedAt     time.Time `json:"awarded_at"`
}
