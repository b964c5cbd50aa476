package repositories

import (
	"context"
	"database/sql"

	"agora/internal/models"
)

// ErrNotFound is returned by lookups that resolve nothing and by
// removals of rows that do not exist. Services translate it into
// their NOT_FOUND error type.
var ErrNotFound = sql.ErrNoRows

// BadgeRepository persists badges of every type in the single badges
// table. All queries take explicit scope parameters; there is no
// ambient "current instance".
type BadgeRepository interface {
	// Create persists the badge and fills ID and CreatedAt. The row
	// exists as soon as Create returns.
	Create(ctx context.Context, badge *models.Badge) error
	GetByID(ctx context.Context, id int64) (*models.Badge, error)
	// Find resolves a numeric id, an exact title, or failing that a
	// title prefix, optionally scoped to one instance.
	Find(ctx context.Context, titleOrID string, instanceID *int64) (*models.Badge, error)
	// List returns badges of exactly the given scope ordered by
	// title; instanceID nil selects global badges.
	List(ctx context.Context, instanceID *int64, visibleOnly bool, badgeType *models.BadgeType) ([]*models.Badge, error)
	Update(ctx context.Context, badge *models.Badge) error
	// Delete removes the badge; assignment rows and child categories
	// are cleaned up by ON DELETE CASCADE.
	Delete(ctx context.Context, id int64) error
	// LoadParents populates the category parent chain for ancestry
	// walks and key rendering.
	LoadParents(ctx context.Context, badge *models.Badge) error
}

// AssignmentRepository persists badge-to-entity join rows for one
// target kind. Assign is atomic: the unique constraint on
// (badge_id, target_id) plus ON CONFLICT DO NOTHING makes double
// assignment a no-op rather than a race.
type AssignmentRepository interface {
	Kind() models.BadgeTargetKind
	// Assign inserts the join row, reporting whether a row was
	// actually created.
	Assign(ctx context.Context, badgeID, targetID, creatorID int64) (created bool, err error)
	// Remove deletes the (badge, target) row; ErrNotFound when the
	// association does not exist.
	Remove(ctx context.Context, badgeID, targetID int64) error
	ListByTarget(ctx context.Context, targetID int64) ([]*models.BadgeAssignment, error)
	ListByBadge(ctx context.Context, badgeID int64) ([]*models.BadgeAssignment, error)
	// BadgesForTarget returns the target's badges ordered by title.
	BadgesForTarget(ctx context.Context, targetID int64) ([]*models.Badge, error)
	// TargetIDsForBadge returns the distinct entities carrying the
	// badge.
	TargetIDsForBadge(ctx context.Context, badgeID int64) ([]int64, error)
}

// InstanceRepository persists instances and their memberships.
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.Instance) error
	GetByID(ctx context.Context, id int64) (*models.Instance, error)
	GetByKey(ctx context.Context, key string) (*models.Instance, error)
	// UpdateSettings writes the whole settings attribute set in one
	// statement; callers diff beforehand and only call on change.
	UpdateSettings(ctx context.Context, instance *models.Instance) error
	Delete(ctx context.Context, id int64) error

	AddMembership(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, userID, instanceID int64) (*models.Membership, error)
	ExpireMembership(ctx context.Context, userID, instanceID int64) error
}

// EventFilter narrows event feed queries. Limit is capped by the
// repository.
type EventFilter struct {
	InstanceID *int64
	Types      []string
	Limit      int
}

// EventRepository persists domain events for feeds and RSS.
type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
	List(ctx context.Context, filter EventFilter) ([]*models.Event, error)
}

// UserRepository persists participants and permission groups.
type UserRepository interface {
	// Create persists the user; on username collision it retries
	// with numbered suffixes a bounded number of times.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetGroupByCode(ctx context.Context, code string) (*models.Group, error)
}

// Collection bundles every repository for service wiring.
type Collection struct {
	Badges      BadgeRepository
	Assignments map[models.BadgeTargetKind]AssignmentRepository
	Instances   InstanceRepository
	Events      EventRepository
	Users       UserRepository
}
