package models

import (
	"sort"
	"strings"
	"time"
)

// BadgeType discriminates which badge behavior applies. All badge
// variants share a single table with a type column; variant-specific
// columns are nullable for the other types. The type is fixed at
// creation and never changes afterwards.
type BadgeType string

const (
	BadgeTypeUser         BadgeType = "user"
	BadgeTypeInstance     BadgeType = "instance"
	BadgeTypeDelegateable BadgeType = "delegateable"
	BadgeTypeCategory     BadgeType = "category"
	BadgeTypeThumbnail    BadgeType = "thumbnail"
)

// Valid reports whether t is one of the known badge types.
func (t BadgeType) Valid() bool {
	switch t {
	case BadgeTypeUser, BadgeTypeInstance, BadgeTypeDelegateable,
		BadgeTypeCategory, BadgeTypeThumbnail:
		return true
	}
	return false
}

// Label returns the human-readable name for the badge type.
func (t BadgeType) Label() string {
	switch t {
	case BadgeTypeUser:
		return "User badge"
	case BadgeTypeInstance:
		return "Instance badge"
	case BadgeTypeDelegateable:
		return "Proposal badge"
	case BadgeTypeCategory:
		return "Category"
	case BadgeTypeThumbnail:
		return "Status badge"
	}
	return "Badge"
}

// TargetKind returns the kind of entity this badge type attaches to.
// Category and thumbnail badges are specializations of delegateable
// badges and attach to proposals.
func (t BadgeType) TargetKind() BadgeTargetKind {
	switch t {
	case BadgeTypeUser:
		return TargetUser
	case BadgeTypeInstance:
		return TargetInstance
	default:
		return TargetDelegateable
	}
}

// MaxBadgeTitleLen bounds badge titles; uniqueness of titles is the
// caller's concern, not enforced here.
const MaxBadgeTitleLen = 40

// Badge is a labeled tag attachable to users, instances or proposals.
// The shared fields live directly on the struct; variant payloads are
// nil for types they do not apply to.
type Badge struct {
	ID          int64     `json:"id" db:"id"`
	Type        BadgeType `json:"type" db:"type"`
	Title       string    `json:"title" db:"title"`
	Color       string    `json:"color" db:"color"`
	Description string    `json:"description" db:"description"`
	InstanceID  *int64    `json:"instance_id,omitempty" db:"instance_id"`
	Visible     bool      `json:"visible" db:"visible"`
	Impact      int       `json:"impact" db:"impact"`
	CreatedAt   time.Time `json:"created_at" db:"create_time"`

	User      *UserBadgeFields      `json:"user,omitempty"`
	Category  *CategoryBadgeFields  `json:"category,omitempty"`
	Thumbnail *ThumbnailBadgeFields `json:"thumbnail,omitempty"`
}

// UserBadgeFields carries the payload specific to user badges.
type UserBadgeFields struct {
	GroupID      *int64 `json:"group_id,omitempty" db:"group_id"`
	DisplayGroup bool   `json:"display_group" db:"display_group"`
}

// CategoryBadgeFields carries the payload specific to category
// badges. Categories form a tree via ParentID; acyclicity is
// maintained by construction (see services.BadgeService).
type CategoryBadgeFields struct {
	ParentID               *int64 `json:"parent_id,omitempty" db:"parent_id"`
	SelectChildDescription string `json:"select_child_description" db:"select_child_description"`
	LongDescription        string `json:"long_description" db:"long_description"`

	// Parent is populated on demand for ancestry walks.
	Parent *Badge `json:"-"`
}

// ThumbnailBadgeFields carries the payload specific to thumbnail
// (status) badges. The image bytes live in the badge row itself.
type ThumbnailBadgeFields struct {
	Thumbnail         []byte `json:"thumbnail,omitempty" db:"thumbnail"`
	ProposalSortOrder string `json:"proposal_sort_order,omitempty" db:"behavior_proposal_sort_order"`
}

// Global reports whether the badge is not scoped to any instance.
func (b *Badge) Global() bool {
	return b.InstanceID == nil
}

// IsAncestor reports whether other is an ancestor of b in the
// category tree. A badge counts as its own ancestor. Requires the
// parent chain to be loaded.
func (b *Badge) IsAncestor(other *Badge) bool {
	if b.ID == other.ID {
		return true
	}
	if b.Category == nil || b.Category.Parent == nil {
		return false
	}
	return b.Category.Parent.IsAncestor(other)
}

// Key renders the path of a category badge from root (exclusive) down
// to the badge itself, e.g. "A > B > C". Requires the parent chain to
// be loaded.
func (b *Badge) Key(root *Badge, sep string) string {
	if sep == "" {
		sep = " > "
	}
	parent := (*Badge)(nil)
	if b.Category != nil {
		parent = b.Category.Parent
	}
	if parent == nil || (root != nil && parent.ID == root.ID) {
		return b.Title
	}
	return parent.Key(root, sep) + sep + b.Title
}

// SortBadgesByTitle orders badges by ascending title. Stable, so
// badges with equal titles keep their input order.
func SortBadgesByTitle(badges []*Badge) {
	sort.SliceStable(badges, func(i, j int) bool {
		return strings.Compare(badges[i].Title, badges[j].Title) < 0
	})
}

// MergeBadgeLists combines instance-scoped and global badge lists
// into a single title-ordered list without duplicate ids. Title
// collisions between distinct badges are kept.
func MergeBadgeLists(scoped, global []*Badge) []*Badge {
	seen := make(map[int64]struct{}, len(scoped)+len(global))
	merged := make([]*Badge, 0, len(scoped)+len(global))
	for _, list := range [][]*Badge{scoped, global} {
		for _, b := range list {
			if _, ok := seen[b.ID]; ok {
				continue
			}
			seen[b.ID] = struct{}{}
			merged = append(merged, b)
		}
	}
	SortBadgesByTitle(merged)
	return merged
}
