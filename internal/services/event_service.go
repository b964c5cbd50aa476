package services

import (
	"context"
	"time"

	"agora/internal/events"
	"agora/internal/models"
	"agora/internal/repositories"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// WithInstance scopes the event to an instance.
func WithInstance(instanceID int64) EmitOption {
	return func(e *models.Event) { e.InstanceID = &instanceID }
}

// WithTopics tags the event with topic references for feed filtering.
func WithTopics(topics ...string) EmitOption {
	return func(e *models.Event) { e.Topics = topics }
}

// WithPayload attaches one keyed context value.
func WithPayload(key string, value any) EmitOption {
	return func(e *models.Event) {
		if e.Payload == nil {
			e.Payload = make(map[string]any)
		}
		e.Payload[key] = value
	}
}

type eventService struct {
	bus    *events.Bus
	repo   repositories.EventRepository
	logger *zap.Logger
}

// NewEventService creates the domain event service. Events are
// enqueued on the bus and persisted by its handlers after the
// triggering request has moved on.
func NewEventService(bus *events.Bus, repo repositories.EventRepository, logger *zap.Logger) EventService {
	return &eventService{bus: bus, repo: repo, logger: logger}
}

// Emit records a domain event. It never fails the caller: id
// generation problems and a full queue are logged and the event is
// dropped.
func (s *eventService) Emit(ctx context.Context, eventType string, actorID int64, opts ...EmitOption) {
	id, err := uuid.NewV4()
	if err != nil {
		s.logger.Error("event id generation failed", zap.Error(err))
		return
	}

	event := models.Event{
		ID:        id.String(),
		Type:      eventType,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&event)
	}

	s.bus.Publish(event)
}

func (s *eventService) Activity(ctx context.Context, filter repositories.EventFilter) ([]*models.Event, error) {
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, NewInternalError("could not load activity", err)
	}
	return list, nil
}
