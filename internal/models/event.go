package models

import "time"

// Domain event types. Events drive activity feeds and RSS; they are
// never consumed to make decisions inside a request.
const (
	EventInstanceCreate = "instance.create"
	EventInstanceEdit   = "instance.edit"
	EventInstanceDelete = "instance.delete"
	EventInstanceJoin   = "instance.join"
	EventInstanceLeave  = "instance.leave"
	EventBadgeCreate    = "badge.create"
	EventBadgeAssign    = "badge.assign"
	EventBadgeRemove    = "badge.remove"
)

// Event is a persisted record of a notable action: who did what,
// where, and any keyed context. Emission is fire-and-forget; a failed
// write is logged and dropped, never surfaced to the actor.
type Event struct {
	ID         string         `json:"id" db:"id"`
	Type       string         `json:"type" db:"type"`
	ActorID    int64          `json:"actor_id" db:"actor_id"`
	InstanceID *int64         `json:"instance_id,omitempty" db:"instance_id"`
	Topics     []string       `json:"topics,omitempty" db:"topics"`
	Payload    map[string]any `json:"payload,omitempty" db:"payload"`
	CreatedAt  time.Time      `json:"created_at" db:"create_time"`
}
