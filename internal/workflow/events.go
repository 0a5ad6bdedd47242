package workflow

import (
	"context"
	"time"
)

// Event types published on the account lifecycle topic.
const (
	EventMigrationRequested = "migration_requested"
	EventMigrationCompleted = "migration_completed"
	EventMigrationFailed    = "migration_failed"
	EventDeletionRequested  = "deletion_requested"
	EventDeletionCancelled  = "deletion_cancelled"
	EventAccountDeleted     = "account_deleted"
)

// LifecycleEvent is the Kafka payload for a lifecycle transition.
type LifecycleEvent struct {
	Type   string    `json:"type"`
	UUID   string    `json:"uuid"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func (s *Service) publish(ctx context.Context, eventType, uuid, detail string) {
	if s.publisher == nil {
		return
	}
	event := LifecycleEvent{
		Type:   eventType,
		UUID:   uuid,
		Detail: detail,
		At:     s.now(),
	}
	if _, _, err := s.publisher.PublishJSON(ctx, s.topic, uuid, event); err != nil {
		s.logger.Error("publish lifecycle event failed",
			"type", eventType,
			"uuid", uuid,
			"error", err,
		)
	}
}
