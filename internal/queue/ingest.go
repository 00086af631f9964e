package queue

import (
	"context"

	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/google/uuid"
)

// ActionLogger is the engine operation the ingest path calls.
type ActionLogger interface {
	LogAction(ctx context.Context, learnerID uuid.UUID, in engine.ActionInput) (*engine.LogResult, error)
}

// IngestActions returns a handler that appends each message to the action
// log.
func IngestActions(svc ActionLogger) ActionHandler {
	return func(ctx context.Context, msg *ActionMessage) error {
		in := engine.ActionInput{
			SessionID:    msg.SessionID,
			ExerciseID:   msg.ExerciseID,
			ExerciseType: msg.ExerciseType,
			ActionType:   msg.ActionType,
			Payload:      msg.Payload,
		}
		if msg.IPAddress != "" || msg.UserAgent != "" {
			in.Origin = &domain.Origin{IPAddress: msg.IPAddress, UserAgent: msg.UserAgent}
		}
		_, err := svc.LogAction(ctx, msg.LearnerID, in)
		return err
	}
}
