package web

import (
	"context"
	"net/http"

	"agora/internal/models"
	"agora/internal/response"
	"agora/internal/services"
	"agora/internal/validation"

	"go.uber.org/zap"
)

// BadgeHandler exposes badge administration and assignment.
type BadgeHandler struct {
	badges services.BadgeService
	logger *zap.Logger
}

// NewBadgeHandler creates the badge handler.
func NewBadgeHandler(badges services.BadgeService, logger *zap.Logger) *BadgeHandler {
	return &BadgeHandler{badges: badges, logger: logger}
}

type badgeForm struct {
	Type        string `json:"type" validate:"required,oneof=user instance delegateable category thumbnail"`
	Title       string `json:"title" validate:"required,max=40"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"max=2000"`
	Visible     bool   `json:"visible"`
	Impact      int    `json:"impact" validate:"min=-1,max=1"`
	InstanceID  *int64 `json:"instance_id"`

	GroupCode    string `json:"group_code" validate:"omitempty,oneof=observer voter supervisor"`
	DisplayGroup bool   `json:"display_group"`

	ParentID               *int64 `json:"parent_id"`
	SelectChildDescription string `json:"select_child_description" validate:"max=255"`
	LongDescription        string `json:"long_description"`

	Thumbnail         []byte `json:"thumbnail"`
	ProposalSortOrder string `json:"proposal_sort_order" validate:"max=50"`
}

type assignForm struct {
	TargetID int64 `json:"target_id" validate:"required,gt=0"`
}

// Create handles POST /badges.
func (h *BadgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	var form badgeForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid badge", details))
		return
	}

	badge, err := h.badges.Create(r.Context(), &services.CreateBadgeRequest{
		Type:                   models.BadgeType(form.Type),
		Title:                  form.Title,
		Color:                  form.Color,
		Description:            form.Description,
		Visible:                form.Visible,
		Impact:                 form.Impact,
		InstanceID:             form.InstanceID,
		ActorID:                user.ID,
		GroupCode:              form.GroupCode,
		DisplayGroup:           form.DisplayGroup,
		ParentID:               form.ParentID,
		SelectChildDescription: form.SelectChildDescription,
		LongDescription:        form.LongDescription,
		Thumbnail:              form.Thumbnail,
		ProposalSortOrder:      form.ProposalSortOrder,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.Created(w, badge)
}

// Update handles PUT /badges/{id}.
func (h *BadgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	var form badgeForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid badge", details))
		return
	}

	badge, err := h.badges.Update(r.Context(), &services.UpdateBadgeRequest{
		ID:                     id,
		Title:                  form.Title,
		Color:                  form.Color,
		Description:            form.Description,
		Visible:                form.Visible,
		Impact:                 form.Impact,
		ActorID:                user.ID,
		GroupCode:              form.GroupCode,
		DisplayGroup:           form.DisplayGroup,
		ParentID:               form.ParentID,
		SelectChildDescription: form.SelectChildDescription,
		LongDescription:        form.LongDescription,
		Thumbnail:              form.Thumbnail,
		ProposalSortOrder:      form.ProposalSortOrder,
	})
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badge)
}

// Delete handles DELETE /badges/{id}.
func (h *BadgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.badges.Delete(r.Context(), id, user.ID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

// Get handles GET /badges/{id}.
func (h *BadgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	badge, err := h.badges.Get(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badge)
}

// List handles GET /badges with scope, type and visibility filters.
func (h *BadgeHandler) List(w http.ResponseWriter, r *http.Request) {
	instanceID, err := optionalInstanceScope(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	q := services.ListBadgesQuery{
		InstanceID:    instanceID,
		IncludeGlobal: r.URL.Query().Get("include_global") == "true",
		VisibleOnly:   r.URL.Query().Get("visible") == "true",
	}
	if raw := r.URL.Query().Get("type"); raw != "" {
		t := models.BadgeType(raw)
		if !t.Valid() {
			response.Error(w, h.logger, services.NewValidationError("unknown badge type", map[string]any{"type": raw}))
			return
		}
		q.Type = &t
	}

	badges, err := h.badges.List(r.Context(), q)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badges)
}

// Find handles GET /badges/find?q= resolving a title or numeric id.
func (h *BadgeHandler) Find(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.Error(w, h.logger, services.NewValidationError("query parameter q is required", nil))
		return
	}
	instanceID, err := optionalInstanceScope(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	badge, err := h.badges.Find(r.Context(), query, instanceID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badge)
}

// Assign handles POST /badges/{id}/assign.
func (h *BadgeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignment(w, r, h.badges.Assign)
}

// Remove handles POST /badges/{id}/remove.
func (h *BadgeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutateAssignment(w, r, h.badges.Remove)
}

func (h *BadgeHandler) mutateAssignment(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, badgeID, targetID, actorID int64) ([]*models.Badge, error)) {
	user, err := actor(r)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	var form assignForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid assignment", details))
		return
	}

	badges, err := op(r.Context(), id, form.TargetID, user.ID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, badges)
}

// Targets handles GET /badges/{id}/targets.
func (h *BadgeHandler) Targets(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	ids, err := h.badges.BadgedEntityIDs(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, ids)
}

// KeyPath handles GET /badges/{id}/path.
func (h *BadgeHandler) KeyPath(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	path, err := h.badges.KeyPath(r.Context(), id)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"path": path})
}
