package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventProgressSubmitted   = "progress.submitted"
	EventAchievementUnlocked = "achievement.unlocked"
	EventActionLogged        = "action.logged"
)

// Event represents a domain event
type Event interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// LearnerID is the learner the event concerns.
	LearnerID() uuid.UUID
}

// BaseEvent provides common event fields
type BaseEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Learner   uuid.UUID `json:"learner_id"`
}

// NewBaseEvent creates a BaseEvent occurring at at.
func NewBaseEvent(eventType string, learnerID uuid.UUID, at time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: at,
		Learner:   learnerID,
	}
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) LearnerID() uuid.UUID  { return e.Learner }

// EventHandler processes domain events
type EventHandler func(event Event)

// EventDispatcher fans events out to subscribers synchronously.
type EventDispatcher struct {
	mu          sync.RWMutex
	handlers    map[string][]EventHandler
	allHandlers []EventHandler
}

// NewEventDispatcher creates a new event dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type
func (d *EventDispatcher) Subscribe(eventType string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (d *EventDispatcher) SubscribeAll(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allHandlers = append(d.allHandlers, handler)
}

// Publish dispatches an event to all registered handlers. A nil dispatcher
// drops the event.
func (d *EventDispatcher) Publish(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.handlers[event.EventType()] {
		h(event)
	}
	for _, h := range d.allHandlers {
		h(event)
	}
}

// ProgressSubmittedEvent is published after a submission is persisted.
type ProgressSubmittedEvent struct {
	BaseEvent
	ExerciseID   int            `json:"exercise_id"`
	ExerciseType string         `json:"exercise_type"`
	Status       ProgressStatus `json:"status"`
	Score        float64        `json:"score"`
	XPEarned     int            `json:"xp_earned"`
	Attempts     int            `json:"attempts"`
	TotalXP      int            `json:"total_xp"`
	Rank         Rank           `json:"rank"`
}

// NewProgressSubmittedEvent builds the event from the saved record and the
// refreshed summary.
func NewProgressSubmittedEvent(p *ProgressRecord, s Summary, at time.Time) ProgressSubmittedEvent {
	return ProgressSubmittedEvent{
		BaseEvent:    NewBaseEvent(EventProgressSubmitted, p.LearnerID, at),
		ExerciseID:   p.ExerciseID,
		ExerciseType: p.ExerciseType,
		Status:       p.Status,
		Score:        p.Score,
		XPEarned:     p.XPEarned,
		Attempts:     p.Attempts,
		TotalXP:      s.TotalXP,
		Rank:         s.Rank,
	}
}

// AchievementUnlockedEvent is published for every awarded achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	Achievement Achievement `json:"achievement"`
	Trigger     string      `json:"trigger"`
}

// NewAchievementUnlockedEvent creates an achievement event.
func NewAchievementUnlockedEvent(learnerID uuid.UUID, a Achievement, trigger string, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:   NewBaseEvent(EventAchievementUnlocked, learnerID, at),
		Achievement: a,
		Trigger:     trigger,
	}
}

// ActionLoggedEvent is published when an action is appended to the log.
type ActionLoggedEvent struct {
	BaseEvent
	ActionType   string `json:"action_type"`
	ExerciseID   int    `json:"exercise_id"`
	ExerciseType string `json:"exercise_type"`
	SessionID    string `json:"session_id"`
}

// NewActionLoggedEvent creates an action event from a stored entry.
func NewActionLoggedEvent(e *ActionLogEntry) ActionLoggedEvent {
	return ActionLoggedEvent{
		BaseEvent:    NewBaseEvent(EventActionLogged, e.LearnerID, e.Timestamp),
		ActionType:   e.ActionType,
		ExerciseID:   e.ExerciseID,
		ExerciseType: e.ExerciseType,
		SessionID:    e.SessionID,
	}
}
