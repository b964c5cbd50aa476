package web

import (
	"net/http"

	"agora/internal/models"
	"agora/internal/response"
	"agora/internal/services"
	"agora/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// InstanceHandler exposes instance lifecycle, membership and the
// settings pages.
type InstanceHandler struct {
	instances services.InstanceService
	settings  services.SettingsService
	badges    services.BadgeService
	logger    *zap.Logger
}

// NewInstanceHandler creates the instance handler.
func NewInstanceHandler(
	instances services.InstanceService,
	settings services.SettingsService,
	badges services.BadgeService,
	logger *zap.Logger,
) *InstanceHandler {
	return &InstanceHandler{
		instances: instances,
		settings:  settings,
		badges:    badges,
		logger:    logger,
	}
}

type createInstanceForm struct {
	Key         string `json:"key" validate:"required,min=3,max=40"`
	Label       string `json:"label" validate:"required,max=255"`
	Description string `json:"description" validate:"max=20000"`
	Locale      string `json:"locale" validate:"omitempty,max=7"`
}

type presetsForm struct {
	Presets map[string]bool `json:"presets" validate:"required"`
}

type instanceBadgesForm struct {
	BadgeIDs []int64 `json:"badge_ids"`
}

// Create handles POST /instances.
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	var form createInstanceForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid instance", details))
		return
	}

	instance, err := h.instances.Create(r.Context(), &services.CreateInstanceRequest{
		Key:         form.Key,
		Label:       form.Label,
		Description: form.Description,
		Locale:      form.Locale,
		ActorID:     user.ID,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.Created(w, instance)
}

// Get handles GET /i/{key}.
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, instance)
}

// Delete handles DELETE /i/{key}.
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Delete(r.Context(), chi.URLParam(r, "key"), user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

// Join handles POST /i/{key}/join.
func (h *InstanceHandler) Join(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Join(r.Context(), chi.URLParam(r, "key"), user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

// Leave handles POST /i/{key}/leave.
func (h *InstanceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Leave(r.Context(), chi.URLParam(r, "key"), user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// SettingsPages handles GET /i/{key}/settings listing the page
// registry with links.
func (h *InstanceHandler) SettingsPages(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	type pageInfo struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	pages := h.settings.Pages()
	out := make([]pageInfo, len(pages))
	for i, p := range pages {
		out[i] = pageInfo{Name: p.Name, Title: p.Title, URL: h.settings.PageURL(instance, p.Name)}
	}
	response.JSON(w, http.StatusOK, out)
}

// SettingsPage handles GET /i/{key}/settings/{page}: the page's
// whitelisted attributes with their current values.
func (h *InstanceHandler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	instance, page, err := h.loadSettingsPage(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}

	values := make(map[string]any, len(page.Attributes))
	for _, name := range page.Attributes {
		if v, ok := instance.Attr(name); ok {
			values[name] = v
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"page":   page.Name,
		"title":  page.Title,
		"values": values,
	})
}

// UpdateSettingsPage handles POST /i/{key}/settings/{page}: diffs the
// submission, persists changes, and answers with a 303 redirect plus
// flash payload.
func (h *InstanceHandler) UpdateSettingsPage(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	instance, page, err := h.loadSettingsPage(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Authorize(r.Context(), instance, user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	var submitted map[string]any
	if err := decodeJSON(r, &submitted); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	result, err := h.settings.UpdatePage(r.Context(), instance, page.Name, submitted, user.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	h.settingsRedirect(w, result)
}

// ApplyPresets handles POST /i/{key}/settings/presets.
func (h *InstanceHandler) ApplyPresets(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Authorize(r.Context(), instance, user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	var form presetsForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	for name := range form.Presets {
		if name != "agenda_setting" && name != "consultation" {
			response.Error(w, h.logger, services.NewValidationError("unknown preset", map[string]any{"presets": name}))
			return
		}
	}

	changed, err := h.settings.ApplyPresets(r.Context(), instance, form.Presets, user.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	result, err := h.settings.Result(r.Context(), changed, instance, "presets", "", user.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	h.settingsRedirect(w, result)
}

// UpdateBadges handles POST /i/{key}/settings/badges, reconciling the
// instance's badge set against the submitted ids.
func (h *InstanceHandler) UpdateBadges(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.instances.Authorize(r.Context(), instance, user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	var form instanceBadgesForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}

	badges, err := h.badges.ReconcileInstanceBadges(r.Context(), instance.ID, form.BadgeIDs, user.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badges)
}

// Badges handles GET /i/{key}/badges.
func (h *InstanceHandler) Badges(w http.ResponseWriter, r *http.Request) {
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	badges, err := h.badges.BadgesFor(r.Context(), models.TargetInstance, instance.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badges)
}

func (h *InstanceHandler) loadSettingsPage(r *http.Request) (*models.Instance, services.SettingsPage, error) {
	instance, err := h.instances.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		return nil, services.SettingsPage{}, err
	}
	page, ok := h.settings.Page(chi.URLParam(r, "page"))
	if !ok {
		return nil, services.SettingsPage{}, services.NewNotFoundError("no such settings page")
	}
	return instance, page, nil
}

// settingsRedirect answers a settings mutation: 303 with the Location
// header set and the flash payload in the body for API clients.
func (h *InstanceHandler) settingsRedirect(w http.ResponseWriter, result *services.SettingsResult) {
	w.Header().Set("Location", result.Location)
	response.JSON(w, http.StatusSeeOther, result)
}
