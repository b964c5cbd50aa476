package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agora/internal/cache"
	"agora/internal/models"
	"agora/internal/repositories"

	"go.uber.org/zap"
)

const badgeCacheTTL = 5 * time.Minute

type badgeService struct {
	badges      repositories.BadgeRepository
	assignments map[models.BadgeTargetKind]repositories.AssignmentRepository
	instances   repositories.InstanceRepository
	users       repositories.UserRepository
	events      EventService
	cache       cache.Cache
	logger      *zap.Logger
}

// NewBadgeService creates the badge factory and assignment service.
func NewBadgeService(
	badges repositories.BadgeRepository,
	assignments map[models.BadgeTargetKind]repositories.AssignmentRepository,
	instances repositories.InstanceRepository,
	users repositories.UserRepository,
	events EventService,
	c cache.Cache,
	logger *zap.Logger,
) BadgeService {
	return &badgeService{
		badges:      badges,
		assignments: assignments,
		instances:   instances,
		users:       users,
		events:      events,
		cache:       c,
		logger:      logger,
	}
}

// authorize permits site admins everywhere and instance creators for
// badges scoped to their instance. Global badges are administrated by
// site admins only.
func (s *badgeService) authorize(ctx context.Context, instanceID *int64, actorID int64) error {
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return classifyRepoError(err, "user not found", "could not check permissions")
	}
	if user.IsAdmin {
		return nil
	}
	if instanceID != nil {
		instance, err := s.instances.GetByID(ctx, *instanceID)
		if err != nil {
			return classifyRepoError(err, "instance not found", "could not check permissions")
		}
		if instance.CreatorID == actorID {
			return nil
		}
	}
	return NewForbiddenError("badge administration requires admin rights")
}

// Create validates the request and builds the variant payload for the
// requested type before persisting. The type is fixed here for the
// badge's lifetime.
func (s *badgeService) Create(ctx context.Context, req *CreateBadgeRequest) (*models.Badge, error) {
	if err := validateBadgeFields(req.Type, req.Title); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.InstanceID, req.ActorID); err != nil {
		return nil, err
	}

	badge := &models.Badge{
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		Color:       req.Color,
		Description: req.Description,
		InstanceID:  req.InstanceID,
		Visible:     req.Visible,
		Impact:      req.Impact,
	}

	switch req.Type {
	case models.BadgeTypeUser:
		fields := &models.UserBadgeFields{DisplayGroup: req.DisplayGroup}
		if req.GroupCode != "" {
			group, err := s.users.GetGroupByCode(ctx, req.GroupCode)
			if err != nil {
				return nil, classifyRepoError(err,
					fmt.Sprintf("no group with code %q", req.GroupCode),
					"could not resolve badge group")
			}
			fields.GroupID = &group.ID
		}
		badge.User = fields
	case models.BadgeTypeCategory:
		badge.Category = &models.CategoryBadgeFields{
			ParentID:               req.ParentID,
			SelectChildDescription: req.SelectChildDescription,
			LongDescription:        req.LongDescription,
		}
		if req.ParentID != nil {
			if err := s.checkCategoryParent(ctx, badge, *req.ParentID); err != nil {
				return nil, err
			}
		}
	case models.BadgeTypeThumbnail:
		badge.Thumbnail = &models.ThumbnailBadgeFields{
			Thumbnail:         req.Thumbnail,
			ProposalSortOrder: req.ProposalSortOrder,
		}
	}

	if err := s.badges.Create(ctx, badge); err != nil {
		return nil, classifyRepoError(err, "badge not found", "could not create badge")
	}
	s.invalidateBadgeLists(ctx)

	s.events.Emit(ctx, models.EventBadgeCreate, req.ActorID,
		withBadgeScope(badge), WithPayload("badge_id", badge.ID))
	return badge, nil
}

// Update mutates shared and variant fields. The badge keeps its type;
// for categories the new parent must not create a cycle.
func (s *badgeService) Update(ctx context.Context, req *UpdateBadgeRequest) (*models.Badge, error) {
	badge, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := validateBadgeFields(badge.Type, req.Title); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, badge.InstanceID, req.ActorID); err != nil {
		return nil, err
	}

	badge.Title = strings.TrimSpace(req.Title)
	badge.Color = req.Color
	badge.Description = req.Description
	badge.Visible = req.Visible
	badge.Impact = req.Impact

	switch badge.Type {
	case models.BadgeTypeUser:
		if badge.User == nil {
			badge.User = &models.UserBadgeFields{}
		}
		badge.User.DisplayGroup = req.DisplayGroup
		badge.User.GroupID = nil
		if req.GroupCode != "" {
			group, err := s.users.GetGroupByCode(ctx, req.GroupCode)
			if err != nil {
				return nil, classifyRepoError(err,
					fmt.Sprintf("no group with code %q", req.GroupCode),
					"could not resolve badge group")
			}
			badge.User.GroupID = &group.ID
		}
	case models.BadgeTypeCategory:
		if badge.Category == nil {
			badge.Category = &models.CategoryBadgeFields{}
		}
		if req.ParentID != nil {
			if err := s.checkCategoryParent(ctx, badge, *req.ParentID); err != nil {
				return nil, err
			}
		}
		badge.Category.ParentID = req.ParentID
		badge.Category.SelectChildDescription = req.SelectChildDescription
		badge.Category.LongDescription = req.LongDescription
	case models.BadgeTypeThumbnail:
		if badge.Thumbnail == nil {
			badge.Thumbnail = &models.ThumbnailBadgeFields{}
		}
		if len(req.Thumbnail) > 0 {
			badge.Thumbnail.Thumbnail = req.Thumbnail
		}
		badge.Thumbnail.ProposalSortOrder = req.ProposalSortOrder
	}

	if err := s.badges.Update(ctx, badge); err != nil {
		return nil, classifyRepoError(err, "badge not found", "could not update badge")
	}
	s.invalidateBadgeLists(ctx)
	return badge, nil
}

func (s *badgeService) Delete(ctx context.Context, id int64, actorID int64) error {
	badge, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, badge.InstanceID, actorID); err != nil {
		return err
	}
	if err := s.badges.Delete(ctx, badge.ID); err != nil {
		return classifyRepoError(err, "badge not found", "could not delete badge")
	}
	s.invalidateBadgeLists(ctx)
	s.logger.Info("badge deleted",
		zap.Int64("badge_id", badge.ID),
		zap.String("type", string(badge.Type)),
		zap.Int64("actor_id", actorID))
	return nil
}

func (s *badgeService) Get(ctx context.Context, id int64) (*models.Badge, error) {
	badge, err := s.badges.GetByID(ctx, id)
	if err != nil {
		return nil, classifyRepoError(err, "badge not found", "could not load badge")
	}
	return badge, nil
}

func (s *badgeService) Find(ctx context.Context, titleOrID string, instanceID *int64) (*models.Badge, error) {
	badge, err := s.badges.Find(ctx, titleOrID, instanceID)
	if err != nil {
		return nil, classifyRepoError(err,
			fmt.Sprintf("no badge matching %q", titleOrID),
			"could not look up badge")
	}
	return badge, nil
}

// List returns badges of one scope, optionally unioned with the
// global ones. The union is deduplicated by id and ordered by title;
// title collisions between distinct badges are kept.
func (s *badgeService) List(ctx context.Context, q ListBadgesQuery) ([]*models.Badge, error) {
	key := badgeListCacheKey(q)
	var cached []*models.Badge
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	scoped, err := s.badges.List(ctx, q.InstanceID, q.VisibleOnly, q.Type)
	if err != nil {
		return nil, classifyRepoError(err, "badges not found", "could not list badges")
	}

	result := scoped
	if q.IncludeGlobal && q.InstanceID != nil {
		global, err := s.badges.List(ctx, nil, q.VisibleOnly, q.Type)
		if err != nil {
			return nil, classifyRepoError(err, "badges not found", "could not list badges")
		}
		result = models.MergeBadgeLists(scoped, global)
	}

	if err := s.cache.Set(ctx, key, result, badgeCacheTTL); err != nil {
		s.logger.Warn("badge list cache write failed", zap.Error(err))
	}
	return result, nil
}

// Assign attaches the badge to the entity matching the badge's own
// type. A second assignment of the same badge is a no-op; only an
// actual insert emits an event.
func (s *badgeService) Assign(ctx context.Context, badgeID, targetID, actorID int64) ([]*models.Badge, error) {
	badge, repo, err := s.badgeAndRepo(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, badge.InstanceID, actorID); err != nil {
		return nil, err
	}

	created, err := repo.Assign(ctx, badgeID, targetID, actorID)
	if err != nil {
		return nil, classifyRepoError(err, "badge not found", "could not assign badge")
	}
	if created {
		s.invalidateTarget(ctx, repo.Kind(), targetID)
		s.events.Emit(ctx, models.EventBadgeAssign, actorID,
			withBadgeScope(badge),
			WithPayload("badge_id", badgeID),
			WithPayload("target_id", targetID),
			WithPayload("target_kind", string(repo.Kind())))
	}
	return s.BadgesFor(ctx, repo.Kind(), targetID)
}

// Remove detaches the badge. Removing an association that does not
// exist is an error, unlike the idempotent Assign.
func (s *badgeService) Remove(ctx context.Context, badgeID, targetID, actorID int64) ([]*models.Badge, error) {
	badge, repo, err := s.badgeAndRepo(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, badge.InstanceID, actorID); err != nil {
		return nil, err
	}

	if err := repo.Remove(ctx, badgeID, targetID); err != nil {
		return nil, classifyRepoError(err, "badge is not assigned to this entity", "could not remove badge")
	}
	s.invalidateTarget(ctx, repo.Kind(), targetID)
	s.events.Emit(ctx, models.EventBadgeRemove, actorID,
		withBadgeScope(badge),
		WithPayload("badge_id", badgeID),
		WithPayload("target_id", targetID),
		WithPayload("target_kind", string(repo.Kind())))

	return s.BadgesFor(ctx, repo.Kind(), targetID)
}

func (s *badgeService) BadgesFor(ctx context.Context, kind models.BadgeTargetKind, targetID int64) ([]*models.Badge, error) {
	repo, ok := s.assignments[kind]
	if !ok {
		return nil, NewInternalError(fmt.Sprintf("no assignment store for kind %q", kind), nil)
	}

	key := targetBadgesCacheKey(kind, targetID)
	var cached []*models.Badge
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	badges, err := repo.BadgesForTarget(ctx, targetID)
	if err != nil {
		return nil, classifyRepoError(err, "badges not found", "could not load badges")
	}
	if err := s.cache.Set(ctx, key, badges, badgeCacheTTL); err != nil {
		s.logger.Warn("target badge cache write failed", zap.Error(err))
	}
	return badges, nil
}

func (s *badgeService) BadgedEntityIDs(ctx context.Context, badgeID int64) ([]int64, error) {
	_, repo, err := s.badgeAndRepo(ctx, badgeID)
	if err != nil {
		return nil, err
	}
	ids, err := repo.TargetIDsForBadge(ctx, badgeID)
	if err != nil {
		return nil, classifyRepoError(err, "badge not found", "could not load badged entities")
	}
	return ids, nil
}

// ReconcileInstanceBadges makes the instance's badge set equal to the
// submitted ids: badges missing from the set are assigned, badges no
// longer listed are removed. Every submitted id must be an instance
// badge.
func (s *badgeService) ReconcileInstanceBadges(ctx context.Context, instanceID int64, badgeIDs []int64, actorID int64) ([]*models.Badge, error) {
	repo := s.assignments[models.TargetInstance]
	current, err := repo.BadgesForTarget(ctx, instanceID)
	if err != nil {
		return nil, classifyRepoError(err, "instance not found", "could not load instance badges")
	}

	want := make(map[int64]struct{}, len(badgeIDs))
	for _, id := range badgeIDs {
		want[id] = struct{}{}
	}
	have := make(map[int64]struct{}, len(current))
	for _, b := range current {
		have[b.ID] = struct{}{}
	}

	// callers authorize against the target instance, so the rows are
	// written directly rather than through the scope checks of Assign
	for id := range want {
		if _, ok := have[id]; ok {
			continue
		}
		badge, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if badge.Type != models.BadgeTypeInstance {
			return nil, NewValidationError(
				fmt.Sprintf("badge %d is not an instance badge", id), nil)
		}
		created, err := repo.Assign(ctx, id, instanceID, actorID)
		if err != nil {
			return nil, classifyRepoError(err, "badge not found", "could not assign badge")
		}
		if created {
			s.events.Emit(ctx, models.EventBadgeAssign, actorID,
				WithInstance(instanceID),
				WithPayload("badge_id", id),
				WithPayload("target_id", instanceID),
				WithPayload("target_kind", string(models.TargetInstance)))
		}
	}
	for _, b := range current {
		if _, ok := want[b.ID]; ok {
			continue
		}
		if err := repo.Remove(ctx, b.ID, instanceID); err != nil {
			return nil, classifyRepoError(err, "badge is not assigned to this entity", "could not remove badge")
		}
		s.events.Emit(ctx, models.EventBadgeRemove, actorID,
			WithInstance(instanceID),
			WithPayload("badge_id", b.ID),
			WithPayload("target_id", instanceID),
			WithPayload("target_kind", string(models.TargetInstance)))
	}

	s.invalidateTarget(ctx, models.TargetInstance, instanceID)
	return s.BadgesFor(ctx, models.TargetInstance, instanceID)
}

// KeyPath renders the tree path of a category badge, e.g. "A > B > C".
func (s *badgeService) KeyPath(ctx context.Context, id int64) (string, error) {
	badge, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if badge.Type != models.BadgeTypeCategory {
		return badge.Title, nil
	}
	if err := s.badges.LoadParents(ctx, badge); err != nil {
		return "", classifyRepoError(err, "badge not found", "could not load badge ancestry")
	}
	return badge.Key(nil, ""), nil
}

// badgeAndRepo loads the badge and resolves the assignment store its
// type attaches to.
func (s *badgeService) badgeAndRepo(ctx context.Context, badgeID int64) (*models.Badge, repositories.AssignmentRepository, error) {
	badge, err := s.Get(ctx, badgeID)
	if err != nil {
		return nil, nil, err
	}
	kind := badge.Type.TargetKind()
	repo, ok := s.assignments[kind]
	if !ok {
		return nil, nil, NewInternalError(fmt.Sprintf("no assignment store for kind %q", kind), nil)
	}
	return badge, repo, nil
}

// checkCategoryParent verifies the parent exists, is itself a
// category, and is not a descendant of the badge being edited.
func (s *badgeService) checkCategoryParent(ctx context.Context, badge *models.Badge, parentID int64) error {
	if badge.ID != 0 && parentID == badge.ID {
		return NewValidationError("a category cannot be its own parent", nil)
	}
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Type != models.BadgeTypeCategory {
		return NewValidationError(
			fmt.Sprintf("badge %d is not a category", parentID), nil)
	}
	if badge.ID != 0 {
		if err := s.badges.LoadParents(ctx, parent); err != nil {
			return classifyRepoError(err, "badge not found", "could not load badge ancestry")
		}
		if parent.IsAncestor(badge) {
			return NewValidationError("cannot move a category below one of its descendants", nil)
		}
	}
	return nil
}

func (s *badgeService) invalidateBadgeLists(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "badges:*"); err != nil {
		s.logger.Warn("badge cache invalidation failed", zap.Error(err))
	}
}

func (s *badgeService) invalidateTarget(ctx context.Context, kind models.BadgeTargetKind, targetID int64) {
	if err := s.cache.Delete(ctx, targetBadgesCacheKey(kind, targetID)); err != nil {
		s.logger.Warn("target badge cache invalidation failed", zap.Error(err))
	}
}

func withBadgeScope(badge *models.Badge) EmitOption {
	return func(e *models.Event) {
		if badge.InstanceID != nil {
			e.InstanceID = badge.InstanceID
		}
	}
}

func validateBadgeFields(t models.BadgeType, title string) error {
	if !t.Valid() {
		return NewValidationError(fmt.Sprintf("unknown badge type %q", t), nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return NewValidationError("badge title is required", map[string]any{"title": "required"})
	}
	if len(title) > models.MaxBadgeTitleLen {
		return NewValidationError(
			fmt.Sprintf("badge title exceeds %d characters", models.MaxBadgeTitleLen),
			map[string]any{"title": "too long"})
	}
	return nil
}

func badgeListCacheKey(q ListBadgesQuery) string {
	scope := "global"
	if q.InstanceID != nil {
		scope = fmt.Sprintf("i%d", *q.InstanceID)
	}
	typ := "all"
	if q.Type != nil {
		typ = string(*q.Type)
	}
	return fmt.Sprintf("badges:list:%s:%s:g%t:v%t", scope, typ, q.IncludeGlobal, q.VisibleOnly)
}

func targetBadgesCacheKey(kind models.BadgeTargetKind, targetID int64) string {
	return fmt.Sprintf("badges:target:%s:%d", kind, targetID)
}
