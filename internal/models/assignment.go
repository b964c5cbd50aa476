package models

import "time"

// BadgeTargetKind names the entity kind an assignment binds a badge
// to. Each kind has its own join table with identical columns.
type BadgeTargetKind string

const (
	TargetUser         BadgeTargetKind = "user"
	TargetInstance     BadgeTargetKind = "instance"
	TargetDelegateable BadgeTargetKind = "delegateable"
)

// Valid reports whether k is a known target kind.
func (k BadgeTargetKind) Valid() bool {
	switch k {
	case TargetUser, TargetInstance, TargetDelegateable:
		return true
	}
	return false
}

// Table returns the join table backing assignments of this kind.
func (k BadgeTargetKind) Table() string {
	switch k {
	case TargetUser:
		return "user_badges"
	case TargetInstance:
		return "instance_badges"
	default:
		return "delegateable_badges"
	}
}

// TargetColumn returns the foreign-key column naming the target
// entity in the join table.
func (k BadgeTargetKind) TargetColumn() string {
	switch k {
	case TargetUser:
		return "user_id"
	case TargetInstance:
		return "instance_id"
	default:
		return "delegateable_id"
	}
}

// BadgeAssignment is a join row binding one badge to one target
// entity, recording who created it and when. Assignments are created
// and deleted, never updated; at most one row exists per
// (badge, target) pair, enforced by a unique constraint.
type BadgeAssignment struct {
	ID        int64     `json:"id" db:"id"`
	BadgeID   int64     `json:"badge_id" db:"badge_id"`
	TargetID  int64     `json:"target_id"`
	CreatorID int64     `json:"creator_id" db:"creator_id"`
	CreatedAt time.Time `json:"created_at" db:"create_time"`
}
