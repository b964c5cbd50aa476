package services

import (
	"agora/internal/cache"
	"agora/internal/events"
	"agora/internal/repositories"

	"go.uber.org/zap"
)

// NewCollection wires every service against the repository collection.
func NewCollection(
	repos *repositories.Collection,
	bus *events.Bus,
	c cache.Cache,
	logger *zap.Logger,
) *Collection {
	eventSvc := NewEventService(bus, repos.Events, logger.Named("events"))
	return &Collection{
		Badges:    NewBadgeService(repos.Badges, repos.Assignments, repos.Instances, repos.Users, eventSvc, c, logger.Named("badges")),
		Settings:  NewSettingsService(repos.Instances, repos.Users, eventSvc, logger.Named("settings")),
		Events:    eventSvc,
		Instances: NewInstanceService(repos.Instances, repos.Users, eventSvc, logger.Named("instances")),
	}
}
