package models

import (
	"fmt"
	"time"
)

// AttributeBag is the flat, name-keyed view the settings coordinator
// works against. Implementations expose a fixed set of attributes;
// names outside that set report !ok rather than panicking.
type AttributeBag interface {
	// Attr returns the current value of the named attribute.
	Attr(name string) (value any, ok bool)
	// SetAttr replaces the value of the named attribute. It fails on
	// unknown names and on type mismatches.
	SetAttr(name string, value any) error
}

// Instance is a participation process with its own members, content
// and configuration. The configuration attributes are exposed as a
// flat bag for the settings coordinator; every settings page edits a
// whitelisted subset of them.
type Instance struct {
	ID          int64     `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	Label       string    `json:"label" db:"label"`
	Description string    `json:"description" db:"description"`
	CreatorID   int64     `json:"creator_id" db:"creator_id"`
	CreatedAt   time.Time `json:"created_at" db:"create_time"`

	// general
	AllowDelegate        bool   `json:"allow_delegate" db:"allow_delegate"`
	Milestones           bool   `json:"milestones" db:"milestones"`
	DisplayCategoryPages bool   `json:"display_category_pages" db:"display_category_pages"`
	Locale               string `json:"locale" db:"locale"`
	Theme                string `json:"theme" db:"theme"`

	// process
	AllowPropose            bool `json:"allow_propose" db:"allow_propose"`
	AllowProposeChanges     bool `json:"allow_propose_changes" db:"allow_propose_changes"`
	UseNorms                bool `json:"use_norms" db:"use_norms"`
	ShowNormsNavigation     bool `json:"show_norms_navigation" db:"show_norms_navigation"`
	ShowProposalsNavigation bool `json:"show_proposals_navigation" db:"show_proposals_navigation"`

	// members
	RequireValidEmail bool   `json:"require_valid_email" db:"require_valid_email"`
	DefaultGroupID    *int64 `json:"default_group_id,omitempty" db:"default_group_id"`

	// advanced
	EditableCommentsDefault  bool   `json:"editable_comments_default" db:"editable_comments_default"`
	EditableProposalsDefault bool   `json:"editable_proposals_default" db:"editable_proposals_default"`
	RequireSelection         bool   `json:"require_selection" db:"require_selection"`
	HideGlobalCategories     bool   `json:"hide_global_categories" db:"hide_global_categories"`
	PageIndexAsTiles         bool   `json:"page_index_as_tiles" db:"page_index_as_tiles"`
	Hidden                   bool   `json:"hidden" db:"hidden"`
	Frozen                   bool   `json:"frozen" db:"frozen"`
	IsAuthenticated          bool   `json:"is_authenticated" db:"is_authenticated"`
	LogoAsBackground         bool   `json:"logo_as_background" db:"logo_as_background"`
	CSS                      string `json:"css" db:"css"`
	ThumbnailBadgesWidth     int    `json:"thumbnailbadges_width" db:"thumbnailbadges_width"`
	ThumbnailBadgesHeight    int    `json:"thumbnailbadges_height" db:"thumbnailbadges_height"`
}

// instanceAttrs maps attribute names to typed accessors. Settings
// pages refer to attributes by these names; anything not listed here
// cannot be touched through the attribute bag.
type instanceAttr struct {
	get func(*Instance) any
	set func(*Instance, any) error
}

func boolAttr(get func(*Instance) *bool) instanceAttr {
	return instanceAttr{
		get: func(i *Instance) any { return *get(i) },
		set: func(i *Instance, v any) error {
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("expected bool, got %T", v)
			}
			*get(i) = b
			return nil
		},
	}
}

func stringAttr(get func(*Instance) *string) instanceAttr {
	return instanceAttr{
		get: func(i *Instance) any { return *get(i) },
		set: func(i *Instance, v any) error {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected string, got %T", v)
			}
			*get(i) = s
			return nil
		},
	}
}

func intAttr(get func(*Instance) *int) instanceAttr {
	return instanceAttr{
		get: func(i *Instance) any { return *get(i) },
		set: func(i *Instance, v any) error {
			// JSON submissions arrive as float64
			switch n := v.(type) {
			case int:
				*get(i) = n
			case int64:
				*get(i) = int(n)
			case float64:
				*get(i) = int(n)
			default:
				return fmt.Errorf("expected int, got %T", v)
			}
			return nil
		},
	}
}

func groupRefAttr() instanceAttr {
	return instanceAttr{
		get: func(i *Instance) any { return i.DefaultGroupID },
		set: func(i *Instance, v any) error {
			switch id := v.(type) {
			case nil:
				i.DefaultGroupID = nil
			case *int64:
				i.DefaultGroupID = id
			case int64:
				i.DefaultGroupID = &id
			case float64:
				n := int64(id)
				i.DefaultGroupID = &n
			default:
				return fmt.Errorf("expected group id, got %T", v)
			}
			return nil
		},
	}
}

var instanceAttrs = map[string]instanceAttr{
	"label":       stringAttr(func(i *Instance) *string { return &i.Label }),
	"description": stringAttr(func(i *Instance) *string { return &i.Description }),

	"allow_delegate":         boolAttr(func(i *Instance) *bool { return &i.AllowDelegate }),
	"milestones":             boolAttr(func(i *Instance) *bool { return &i.Milestones }),
	"display_category_pages": boolAttr(func(i *Instance) *bool { return &i.DisplayCategoryPages }),
	"locale":                 stringAttr(func(i *Instance) *string { return &i.Locale }),
	"theme":                  stringAttr(func(i *Instance) *string { return &i.Theme }),

	"allow_propose":             boolAttr(func(i *Instance) *bool { return &i.AllowPropose }),
	"allow_propose_changes":     boolAttr(func(i *Instance) *bool { return &i.AllowProposeChanges }),
	"use_norms":                 boolAttr(func(i *Instance) *bool { return &i.UseNorms }),
	"show_norms_navigation":     boolAttr(func(i *Instance) *bool { return &i.ShowNormsNavigation }),
	"show_proposals_navigation": boolAttr(func(i *Instance) *bool { return &i.ShowProposalsNavigation }),

	"require_valid_email": boolAttr(func(i *Instance) *bool { return &i.RequireValidEmail }),
	"default_group":       groupRefAttr(),

	"editable_comments_default":  boolAttr(func(i *Instance) *bool { return &i.EditableCommentsDefault }),
	"editable_proposals_default": boolAttr(func(i *Instance) *bool { return &i.EditableProposalsDefault }),
	"require_selection":          boolAttr(func(i *Instance) *bool { return &i.RequireSelection }),
	"hide_global_categories":     boolAttr(func(i *Instance) *bool { return &i.HideGlobalCategories }),
	"page_index_as_tiles":        boolAttr(func(i *Instance) *bool { return &i.PageIndexAsTiles }),
	"hidden":                     boolAttr(func(i *Instance) *bool { return &i.Hidden }),
	"frozen":                     boolAttr(func(i *Instance) *bool { return &i.Frozen }),
	"is_authenticated":           boolAttr(func(i *Instance) *bool { return &i.IsAuthenticated }),
	"logo_as_background":         boolAttr(func(i *Instance) *bool { return &i.LogoAsBackground }),
	"css":                        stringAttr(func(i *Instance) *string { return &i.CSS }),
	"thumbnailbadges_width":      intAttr(func(i *Instance) *int { return &i.ThumbnailBadgesWidth }),
	"thumbnailbadges_height":     intAttr(func(i *Instance) *int { return &i.ThumbnailBadgesHeight }),
}

// Attr implements AttributeBag.
func (i *Instance) Attr(name string) (any, bool) {
	a, ok := instanceAttrs[name]
	if !ok {
		return nil, false
	}
	return a.get(i), true
}

// SetAttr implements AttributeBag.
func (i *Instance) SetAttr(name string, value any) error {
	a, ok := instanceAttrs[name]
	if !ok {
		return fmt.Errorf("unknown instance attribute %q", name)
	}
	if err := a.set(i, value); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	return nil
}
