package services

import (
	"context"
	"fmt"
	"reflect"

	"agora/internal/models"
	"agora/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Flash texts for settings mutations.
const (
	MsgInstanceUpdated  = "The instance settings have been updated."
	MsgNoUpdateRequired = "No update required."
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashNotice  = "notice"
	FlashError   = "error"
)

// presetAttrs maps preset names to the attribute sets they turn on.
// Only attributes appearing in at least one preset are ever touched
// by preset application. The always_off pseudo-preset is never
// selectable; listing an attribute there forces it off on every
// preset application unless another active preset claims it.
var presetAttrs = map[string][]string{
	"agenda_setting": {
		"allow_delegate",
		"show_proposals_navigation",
	},
	"consultation": {
		"use_norms",
		"show_norms_navigation",
	},
	"always_off": {
		"milestones",
		"hide_global_categories",
		"display_category_pages",
		"allow_propose",
		"allow_propose_changes",
		"require_selection",
	},
}

// SelectablePresets are the presets a caller may activate.
var SelectablePresets = []string{"agenda_setting", "consultation"}

// settingsPages is the ordered settings page registry. Attributes is
// the base whitelist; AuthAttributes extends it for authenticated
// instances and AdminAttributes for site admins.
var settingsPages = []SettingsPage{
	{Name: "overview", Title: "Overview",
		Attributes:     []string{"label", "description"},
		AuthAttributes: []string{"logo_as_background"}},
	{Name: "general", Title: "General settings",
		Attributes:     []string{"allow_delegate", "locale", "milestones", "display_category_pages"},
		AuthAttributes: []string{"theme"}},
	{Name: "process", Title: "Process settings",
		Attributes: []string{"allow_propose", "allow_propose_changes", "use_norms",
			"show_norms_navigation", "show_proposals_navigation"}},
	{Name: "members", Title: "Manage members",
		Attributes: []string{"require_valid_email", "default_group"}},
	{Name: "advanced", Title: "Advanced settings",
		Attributes: []string{"editable_comments_default", "editable_proposals_default",
			"require_selection", "hide_global_categories", "hidden", "frozen",
			"page_index_as_tiles"},
		AdminAttributes: []string{"css", "thumbnailbadges_width", "thumbnailbadges_height",
			"is_authenticated"}},
	{Name: "presets", Title: "Process presets"},
}

type settingsService struct {
	instances repositories.InstanceRepository
	users     repositories.UserRepository
	events    EventService
	logger    *zap.Logger
}

// NewSettingsService creates the instance settings coordinator.
func NewSettingsService(
	instances repositories.InstanceRepository,
	users repositories.UserRepository,
	events EventService,
	logger *zap.Logger,
) SettingsService {
	return &settingsService{
		instances: instances,
		users:     users,
		events:    events,
		logger:    logger,
	}
}

func (s *settingsService) Pages() []SettingsPage {
	pages := make([]SettingsPage, len(settingsPages))
	copy(pages, settingsPages)
	return pages
}

func (s *settingsService) Page(name string) (SettingsPage, bool) {
	for _, p := range settingsPages {
		if p.Name == name {
			return p, true
		}
	}
	return SettingsPage{}, false
}

func (s *settingsService) PageURL(instance *models.Instance, page string) string {
	return fmt.Sprintf("/i/%s/settings/%s", instance.Key, page)
}

// UpdateAttributes applies submitted values onto the bag for every
// whitelisted attribute present in the submission. Change detection
// is value-based: writing the current value back counts as no
// change. Attributes outside the whitelist are never touched,
// whatever the submission contains.
func (s *settingsService) UpdateAttributes(bag models.AttributeBag, submitted map[string]any, allowed []string) (bool, error) {
	changed := false
	for _, name := range allowed {
		value, present := submitted[name]
		if !present {
			continue
		}
		current, ok := bag.Attr(name)
		if !ok {
			return changed, NewValidationError(
				fmt.Sprintf("unknown attribute %q", name), nil)
		}
		if attrEqual(current, value) {
			continue
		}
		if err := bag.SetAttr(name, value); err != nil {
			return changed, NewValidationError(err.Error(), map[string]any{name: "invalid value"})
		}
		changed = true
	}
	return changed, nil
}

func (s *settingsService) UpdatePage(ctx context.Context, instance *models.Instance, page string, submitted map[string]any, actorID int64) (*SettingsResult, error) {
	p, ok := s.Page(page)
	if !ok {
		return nil, NewNotFoundError(fmt.Sprintf("no settings page %q", page))
	}

	allowed := slices.Clone(p.Attributes)
	if instance.IsAuthenticated {
		allowed = append(allowed, p.AuthAttributes...)
	}
	if len(p.AdminAttributes) > 0 && s.actorIsAdmin(ctx, actorID) {
		allowed = append(allowed, p.AdminAttributes...)
	}

	changed, err := s.UpdateAttributes(instance, submitted, allowed)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.instances.UpdateSettings(ctx, instance); err != nil {
			return nil, classifyRepoError(err, "instance not found", "could not save settings")
		}
	}
	return s.Result(ctx, changed, instance, page, "", actorID)
}

// ApplyPresets computes the union of attribute sets of every active
// preset, forces those on, and forces off every attribute governed by
// some preset but not active. Attributes outside all presets are left
// alone. Persists in one statement when anything changed.
func (s *settingsService) ApplyPresets(ctx context.Context, instance *models.Instance, selection map[string]bool, actorID int64) (bool, error) {
	active := make(map[string]struct{})
	all := make(map[string]struct{})
	for preset, attrs := range presetAttrs {
		for _, attr := range attrs {
			all[attr] = struct{}{}
			if selection[preset] {
				active[attr] = struct{}{}
			}
		}
	}

	changed := false
	for attr := range active {
		on, err := s.boolAttr(instance, attr)
		if err != nil {
			return false, err
		}
		if !on {
			if err := instance.SetAttr(attr, true); err != nil {
				return false, NewInternalError("preset application failed", err)
			}
			changed = true
		}
	}
	for attr := range all {
		if _, isActive := active[attr]; isActive {
			continue
		}
		on, err := s.boolAttr(instance, attr)
		if err != nil {
			return false, err
		}
		if on {
			if err := instance.SetAttr(attr, false); err != nil {
				return false, NewInternalError("preset application failed", err)
			}
			changed = true
		}
	}

	if changed {
		if err := s.instances.UpdateSettings(ctx, instance); err != nil {
			return false, classifyRepoError(err, "instance not found", "could not save presets")
		}
	}
	return changed, nil
}

func (s *settingsService) boolAttr(instance *models.Instance, name string) (bool, error) {
	v, ok := instance.Attr(name)
	if !ok {
		return false, NewInternalError(fmt.Sprintf("preset references unknown attribute %q", name), nil)
	}
	on, ok := v.(bool)
	if !ok {
		return false, NewInternalError(fmt.Sprintf("preset references non-boolean attribute %q", name), nil)
	}
	return on, nil
}

// Result builds the redirect-with-flash outcome of a settings
// mutation. The instance-edited event fires only on an actual
// update; no-op submissions produce a notice and no event.
func (s *settingsService) Result(ctx context.Context, updated bool, instance *models.Instance, page string, message string, actorID int64) (*SettingsResult, error) {
	category := FlashNotice
	if updated {
		s.events.Emit(ctx, models.EventInstanceEdit, actorID, WithInstance(instance.ID))
		category = FlashSuccess
		if message == "" {
			message = MsgInstanceUpdated
		}
	} else if message == "" {
		message = MsgNoUpdateRequired
	}

	return &SettingsResult{
		Updated:  updated,
		Message:  message,
		Category: category,
		Location: s.PageURL(instance, page),
	}, nil
}

func (s *settingsService) actorIsAdmin(ctx context.Context, actorID int64) bool {
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		s.logger.Warn("admin check failed", zap.Int64("actor_id", actorID), zap.Error(err))
		return false
	}
	return user.IsAdmin
}

// attrEqual compares a current attribute value with a submitted one,
// looking through pointers and across numeric types so *int64(3)
// equals the float64(3) a JSON body delivers.
func attrEqual(a, b any) bool {
	a, b = derefValue(a), derefValue(b)
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func derefValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}
