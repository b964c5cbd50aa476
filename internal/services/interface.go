package services

import (
	"context"

	"agora/internal/models"
	"agora/internal/repositories"
)

// CreateBadgeRequest carries the fields for the type-dispatching
// badge factory. The variant fields are read only for the matching
// badge type.
type CreateBadgeRequest struct {
	Type        models.BadgeType
	Title       string
	Color       string
	Description string
	Visible     bool
	Impact      int
	InstanceID  *int64
	ActorID     int64

	// user badges
	GroupCode    string
	DisplayGroup bool

	// category badges
	ParentID               *int64
	SelectChildDescription string
	LongDescription        string

	// thumbnail badges
	Thumbnail         []byte
	ProposalSortOrder string
}

// UpdateBadgeRequest mutates an existing badge. The type is fixed at
// creation and cannot be changed here.
type UpdateBadgeRequest struct {
	ID          int64
	Title       string
	Color       string
	Description string
	Visible     bool
	Impact      int
	ActorID     int64

	GroupCode    string
	DisplayGroup bool

	ParentID               *int64
	SelectChildDescription string
	LongDescription        string

	Thumbnail         []byte
	ProposalSortOrder string
}

// ListBadgesQuery scopes badge listings. Every query names its scope
// explicitly; there is no ambient current instance.
type ListBadgesQuery struct {
	InstanceID    *int64
	IncludeGlobal bool
	VisibleOnly   bool
	Type          *models.BadgeType
}

// BadgeService is the badge factory, query surface and assignment
// protocol.
type BadgeService interface {
	Create(ctx context.Context, req *CreateBadgeRequest) (*models.Badge, error)
	Update(ctx context.Context, req *UpdateBadgeRequest) (*models.Badge, error)
	Delete(ctx context.Context, id int64, actorID int64) error
	Get(ctx context.Context, id int64) (*models.Badge, error)
	// Find resolves a numeric id or a title, optionally scoped.
	Find(ctx context.Context, titleOrID string, instanceID *int64) (*models.Badge, error)
	List(ctx context.Context, q ListBadgesQuery) ([]*models.Badge, error)

	// Assign attaches the badge to the target entity matching the
	// badge's own type. Assigning an already-assigned badge is a
	// no-op. Returns the target's updated badge set.
	Assign(ctx context.Context, badgeID, targetID, actorID int64) ([]*models.Badge, error)
	// Remove detaches the badge; NOT_FOUND when the association does
	// not exist. Returns the target's updated badge set.
	Remove(ctx context.Context, badgeID, targetID, actorID int64) ([]*models.Badge, error)
	// BadgesFor returns the badges attached to one entity.
	BadgesFor(ctx context.Context, kind models.BadgeTargetKind, targetID int64) ([]*models.Badge, error)
	// BadgedEntityIDs returns the distinct entities carrying a badge.
	BadgedEntityIDs(ctx context.Context, badgeID int64) ([]int64, error)
	// ReconcileInstanceBadges makes the instance's badge set equal to
	// the submitted ids, assigning and removing as needed.
	ReconcileInstanceBadges(ctx context.Context, instanceID int64, badgeIDs []int64, actorID int64) ([]*models.Badge, error)
	// KeyPath renders the tree path of a category badge.
	KeyPath(ctx context.Context, id int64) (string, error)
}

// SettingsPage is one entry of the settings page registry: a page
// name, its display title and the attribute whitelist it may edit.
// AuthAttributes extend the whitelist on authenticated instances,
// AdminAttributes when the acting user is a site admin.
type SettingsPage struct {
	Name            string
	Title           string
	Attributes      []string
	AuthAttributes  []string
	AdminAttributes []string
}

// SettingsResult is the outcome of a settings mutation: the flash
// message and category plus the 303 redirect target.
type SettingsResult struct {
	Updated  bool   `json:"updated"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Location string `json:"location"`
}

// SettingsService is the instance settings coordinator.
type SettingsService interface {
	Pages() []SettingsPage
	Page(name string) (SettingsPage, bool)
	PageURL(instance *models.Instance, page string) string

	// UpdateAttributes diffs submitted values against the bag for
	// every whitelisted name and applies only actual changes. It
	// reports whether anything changed; it does not persist.
	UpdateAttributes(bag models.AttributeBag, submitted map[string]any, allowed []string) (bool, error)
	// UpdatePage runs the whole page flow: whitelist diff, persist on
	// change, emit on change, build flash and redirect.
	UpdatePage(ctx context.Context, instance *models.Instance, page string, submitted map[string]any, actorID int64) (*SettingsResult, error)
	// ApplyPresets applies the named preset selection with the
	// two-pass activate/deactivate algorithm and persists on change.
	ApplyPresets(ctx context.Context, instance *models.Instance, selection map[string]bool, actorID int64) (bool, error)
	// Result builds the redirect-with-flash outcome, emitting the
	// instance-edited event iff updated. An empty message selects the
	// generic text.
	Result(ctx context.Context, updated bool, instance *models.Instance, page string, message string, actorID int64) (*SettingsResult, error)
}

// EmitOption attaches context to an emitted event.
type EmitOption func(*models.Event)

// EventService emits and queries domain events. Emit is
// fire-and-forget: it never returns an error and never blocks beyond
// the enqueue.
type EventService interface {
	Emit(ctx context.Context, eventType string, actorID int64, opts ...EmitOption)
	Activity(ctx context.Context, filter repositories.EventFilter) ([]*models.Event, error)
}

// CreateInstanceRequest carries the fields to found an instance.
type CreateInstanceRequest struct {
	Key         string
	Label       string
	Description string
	Locale      string
	ActorID     int64
}

// InstanceService manages instance lifecycle and membership.
type InstanceService interface {
	Create(ctx context.Context, req *CreateInstanceRequest) (*models.Instance, error)
	GetByKey(ctx context.Context, key string) (*models.Instance, error)
	Delete(ctx context.Context, key string, actorID int64) error
	Join(ctx context.Context, key string, actorID int64) error
	Leave(ctx context.Context, key string, actorID int64) error
	// Authorize verifies the actor may edit the instance; FORBIDDEN
	// otherwise. Checked before any mutation.
	Authorize(ctx context.Context, instance *models.Instance, actorID int64) error
}

// Collection bundles every service for handler wiring.
type Collection struct {
	Badges    BadgeService
	Settings  SettingsService
	Events    EventService
	Instances InstanceService
}
