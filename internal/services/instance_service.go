package services

import (
	"context"
	"fmt"
	"regexp"

	"agora/internal/models"
	"agora/internal/repositories"

	"go.uber.org/zap"
)

var instanceKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{2,39}$`)

type instanceService struct {
	instances repositories.InstanceRepository
	users     repositories.UserRepository
	events    EventService
	logger    *zap.Logger
}

// NewInstanceService creates the instance lifecycle service.
func NewInstanceService(
	instances repositories.InstanceRepository,
	users repositories.UserRepository,
	events EventService,
	logger *zap.Logger,
) InstanceService {
	return &instanceService{
		instances: instances,
		users:     users,
		events:    events,
		logger:    logger,
	}
}

// Create founds an instance and enrolls the founder as supervisor.
func (s *instanceService) Create(ctx context.Context, req *CreateInstanceRequest) (*models.Instance, error) {
	if !instanceKeyPattern.MatchString(req.Key) {
		return nil, NewValidationError(
			"instance key must start with a letter and contain only lowercase letters, digits, dashes and underscores",
			map[string]any{"key": "invalid"})
	}
	if req.Label == "" {
		return nil, NewValidationError("instance label is required", map[string]any{"label": "required"})
	}

	instance := &models.Instance{
		Key:         req.Key,
		Label:       req.Label,
		Description: req.Description,
		Locale:      req.Locale,
		CreatorID:   req.ActorID,

		// new instances start with the participation features on
		AllowPropose:            true,
		AllowProposeChanges:     true,
		AllowDelegate:           true,
		UseNorms:                true,
		ShowNormsNavigation:     true,
		ShowProposalsNavigation: true,
	}

	if err := s.instances.Create(ctx, instance); err != nil {
		return nil, classifyRepoError(err, "instance not found", "could not create instance")
	}

	if err := s.enroll(ctx, instance, req.ActorID, models.GroupCodeSupervisor); err != nil {
		s.logger.Error("founder enrollment failed",
			zap.String("key", instance.Key), zap.Error(err))
	}

	s.events.Emit(ctx, models.EventInstanceCreate, req.ActorID, WithInstance(instance.ID))
	return instance, nil
}

func (s *instanceService) GetByKey(ctx context.Context, key string) (*models.Instance, error) {
	instance, err := s.instances.GetByKey(ctx, key)
	if err != nil {
		return nil, classifyRepoError(err,
			fmt.Sprintf("no instance with key %q", key),
			"could not load instance")
	}
	return instance, nil
}

func (s *instanceService) Delete(ctx context.Context, key string, actorID int64) error {
	instance, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, instance, actorID); err != nil {
		return err
	}
	if err := s.instances.Delete(ctx, instance.ID); err != nil {
		return classifyRepoError(err, "instance not found", "could not delete instance")
	}
	s.events.Emit(ctx, models.EventInstanceDelete, actorID,
		WithPayload("key", instance.Key))
	return nil
}

// Join enrolls the actor in the instance's default group, or as
// observer when no default is configured. Joining twice is a
// business rule violation.
func (s *instanceService) Join(ctx context.Context, key string, actorID int64) error {
	instance, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	existing, err := s.instances.GetMembership(ctx, actorID, instance.ID)
	if err != nil && !repositories.IsNotFound(err) {
		return NewInternalError("could not check membership", err)
	}
	if existing != nil && !existing.Expired() {
		return NewBusinessError("you are already a member of this instance", "already_member")
	}

	code := models.GroupCodeObserver
	if instance.DefaultGroupID != nil {
		// the default group is stored by id; membership insert takes it directly
		m := &models.Membership{
			UserID:     actorID,
			InstanceID: instance.ID,
			GroupID:    *instance.DefaultGroupID,
		}
		if err := s.instances.AddMembership(ctx, m); err != nil {
			return classifyRepoError(err, "instance not found", "could not join instance")
		}
		s.events.Emit(ctx, models.EventInstanceJoin, actorID, WithInstance(instance.ID))
		return nil
	}

	if err := s.enroll(ctx, instance, actorID, code); err != nil {
		return err
	}
	s.events.Emit(ctx, models.EventInstanceJoin, actorID, WithInstance(instance.ID))
	return nil
}

// Leave expires the actor's membership. The founder cannot leave
// their own instance.
func (s *instanceService) Leave(ctx context.Context, key string, actorID int64) error {
	instance, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}
	if instance.CreatorID == actorID {
		return NewBusinessError("the founder cannot leave the instance", "founder_cannot_leave")
	}

	membership, err := s.instances.GetMembership(ctx, actorID, instance.ID)
	if err != nil {
		return classifyRepoError(err, "you are not a member of this instance", "could not check membership")
	}
	if membership.Expired() {
		return NewBusinessError("you are not a member of this instance", "not_member")
	}

	if err := s.instances.ExpireMembership(ctx, actorID, instance.ID); err != nil {
		return classifyRepoError(err, "you are not a member of this instance", "could not leave instance")
	}
	s.events.Emit(ctx, models.EventInstanceLeave, actorID, WithInstance(instance.ID))
	return nil
}

// Authorize permits the instance creator and site admins to mutate
// the instance.
func (s *instanceService) Authorize(ctx context.Context, instance *models.Instance, actorID int64) error {
	if instance.CreatorID == actorID {
		return nil
	}
	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return classifyRepoError(err, "user not found", "could not check permissions")
	}
	if user.IsAdmin {
		return nil
	}
	return NewForbiddenError("you may not administrate this instance")
}

func (s *instanceService) enroll(ctx context.Context, instance *models.Instance, userID int64, groupCode string) error {
	group, err := s.users.GetGroupByCode(ctx, groupCode)
	if err != nil {
		return classifyRepoError(err,
			fmt.Sprintf("no group with code %q", groupCode),
			"could not resolve membership group")
	}
	m := &models.Membership{
		UserID:     userID,
		InstanceID: instance.ID,
		GroupID:    group.ID,
	}
	if err := s.instances.AddMembership(ctx, m); err != nil {
		return classifyRepoError(err, "instance not found", "could not join instance")
	}
	return nil
}
