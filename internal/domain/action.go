package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action tags with engine-level meaning. Other tags are stored as given.
const (
	ActionStart            = "start"
	ActionComplete         = "complete"
	ActionHintUsed         = "hint_used"
	ActionMistake          = "mistake"
	ActionTutorialComplete = "tutorial_complete"
	ActionDailyActivity    = "daily_activity"
)

// Origin is optional request metadata attached to a logged action.
type Origin struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ActionLogEntry is one append-only learner interaction.
type ActionLogEntry struct {
	ID           uuid.UUID       `json:"id"`
	LearnerID    uuid.UUID       `json:"learner_id"`
	SessionID    string          `json:"session_id"`
	ExerciseID   int             `json:"exercise_id"`
	ExerciseType string          `json:"exercise_type"`
	ActionType   string          `json:"action_type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Origin       *Origin         `json:"origin,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Validate checks the fields required to store an entry.
func (e *ActionLogEntry) Validate() error {
	if e.LearnerID == uuid.Nil {
		return NewValidationError("learner_id", "is required")
	}
	if e.ActionType == "" {
		return NewValidationError("action_type", "is required")
	}
	if len(e.Payload) > 0 && !json.Valid(e.Payload) {
		return NewValidationError("payload", "must be valid JSON")
	}
	return nil
}
