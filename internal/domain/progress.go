package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ProgressStatus is the lifecycle state of a progress record.
type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusFailed     ProgressStatus = "failed"
)

// PassingScore is the minimum score that completes an exercise.
const PassingScore = 70.0

// DefaultMaxScore is the score scale used when none is given.
const DefaultMaxScore = 100.0

// ExerciseKey identifies one progress record.
type ExerciseKey struct {
	LearnerID    uuid.UUID
	ExerciseID   int
	ExerciseType string
}

// ProgressRecord tracks a learner's state on one exercise.
type ProgressRecord struct {
	ID                   uuid.UUID      `json:"id"`
	LearnerID            uuid.UUID      `json:"learner_id"`
	ExerciseID           int            `json:"exercise_id"`
	ExerciseType         string         `json:"exercise_type"`
	Status               ProgressStatus `json:"status"`
	Score                float64        `json:"score"`
	MaxScore             float64        `json:"max_score"`
	CompletionPercentage float64        `json:"completion_percentage"`
	TimeSpent            int            `json:"time_spent"` // seconds
	Attempts             int            `json:"attempts"`
	XPEarned             int            `json:"xp_earned"`
	HintsUsed            int            `json:"hints_used"`
	MistakesMade         int            `json:"mistakes_made"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// NewProgressRecord creates an untouched record for key.
func NewProgressRecord(key ExerciseKey, now time.Time) *ProgressRecord {
	return &ProgressRecord{
		ID:           uuid.New(),
		LearnerID:    key.LearnerID,
		ExerciseID:   key.ExerciseID,
		ExerciseType: key.ExerciseType,
		Status:       StatusNotStarted,
		MaxScore:     DefaultMaxScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Key returns the record's identity.
func (p *ProgressRecord) Key() ExerciseKey {
	return ExerciseKey{LearnerID: p.LearnerID, ExerciseID: p.ExerciseID, ExerciseType: p.ExerciseType}
}

// Start marks the exercise as in progress. Completed records are left alone.
func (p *ProgressRecord) Start(now time.Time) {
	if p.Status == StatusCompleted {
		return
	}
	p.Status = StatusInProgress
	p.StartedAt = &now
	p.UpdatedAt = now
}

// ProgressUpdate transforms the current record into the one to store. It
// receives nil when no record exists yet.
type ProgressUpdate func(current *ProgressRecord) (*ProgressRecord, error)

// Attempt is the outcome of one play-through.
type Attempt struct {
	Score        float64
	TimeSpent    int
	HintsUsed    int
	MistakesMade int
	XPEarned     int
}

// ApplyAttempt records a submission. A score at or above PassingScore
// completes the exercise; anything lower fails it with partial completion.
func (p *ProgressRecord) ApplyAttempt(a Attempt, now time.Time) {
	p.Score = a.Score
	p.TimeSpent = a.TimeSpent
	p.HintsUsed = a.HintsUsed
	p.MistakesMade = a.MistakesMade
	p.XPEarned = a.XPEarned
	p.Attempts++
	if p.MaxScore <= 0 {
		p.MaxScore = DefaultMaxScore
	}

	if a.Score >= PassingScore {
		p.Status = StatusCompleted
		p.CompletionPercentage = 100
		p.CompletedAt = &now
	} else {
		p.Status = StatusFailed
		p.CompletionPercentage = math.Min(100, a.Score/PassingScore*100)
	}
	if p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.UpdatedAt = now
}
