package domain

import "strconv"

// Exercise types
const (
	ExerciseTypeSimulation = "simulation"
	ExerciseTypeTeamMode   = "blue_team_vs_red_team"
)

// Level describes one exercise of the simulation track.
type Level struct {
	ID             int
	Name           string
	Skills         []string
	BaseXP         int
	DefaultMinutes int
}

// MaxLevel is the number of simulation levels in the catalog.
const MaxLevel = 5

const (
	defaultBaseXP  = 100
	defaultMinutes = 20
)

var levels = map[int]Level{
	1: {
		ID:             1,
		Name:           "The Misinformation Maze",
		Skills:         []string{"critical_thinking", "source_verification", "fact_checking"},
		BaseXP:         100,
		DefaultMinutes: 15,
	},
	2: {
		ID:             2,
		Name:           "Shadow in the Inbox",
		Skills:         []string{"phishing_detection", "email_analysis", "social_engineering"},
		BaseXP:         150,
		DefaultMinutes: 20,
	},
	3: {
		ID:             3,
		Name:           "Malware Mayhem",
		Skills:         []string{"malware_recognition", "system_security", "threat_analysis"},
		BaseXP:         200,
		DefaultMinutes: 25,
	},
	4: {
		ID:             4,
		Name:           "The White Hat Test",
		Skills:         []string{"penetration_testing", "vulnerability_assessment", "ethical_hacking"},
		BaseXP:         350,
		DefaultMinutes: 30,
	},
	5: {
		ID:             5,
		Name:           "The Hunt for The Null",
		Skills:         []string{"digital_forensics", "evidence_analysis", "advanced_investigation"},
		BaseXP:         500,
		DefaultMinutes: 40,
	},
}

// LookupLevel returns the catalog entry for id.
func LookupLevel(id int) (Level, bool) {
	l, ok := levels[id]
	return l, ok
}

// LevelName returns the display name of a level, or "Level N" when unknown.
func LevelName(id int) string {
	if l, ok := levels[id]; ok {
		return l.Name
	}
	return "Level " + strconv.Itoa(id)
}

// LevelSkills returns the skills exercised by a level.
func LevelSkills(id int) []string {
	if l, ok := levels[id]; ok {
		return append([]string(nil), l.Skills...)
	}
	return nil
}

// BaseXP returns the base reward for a level.
func BaseXP(id int) int {
	if l, ok := levels[id]; ok {
		return l.BaseXP
	}
	return defaultBaseXP
}

// DefaultCompletionMinutes returns the expected duration of a level.
func DefaultCompletionMinutes(id int) int {
	if l, ok := levels[id]; ok {
		return l.DefaultMinutes
	}
	return defaultMinutes
}
