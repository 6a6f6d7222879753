// Package events publishes and consumes the dating service's domain events
// over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeLikeCreated     = "like.created"
	TypeLikeRemoved     = "like.removed"
	TypeMatchCreated    = "match.created"
	TypeMatchRemoved    = "match.removed"
	TypeBlockCreated    = "block.created"
	TypeMessageSent     = "message.sent"
	TypeNotificationNew = "notification.created"
)

// Event is a fact about something that happened to UserID, usually caused by
// ActorID. The message key on the broker is UserID so a user's events stay
// ordered within one partition.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	UserID     int64          `json:"user_id"`
	ActorID    int64          `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// New creates an event with a fresh id stamped at the current time.
func New(eventType string, userID, actorID int64, payload map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
