package events

import (
	"context"
	"time"

	"agora/internal/models"
	"agora/internal/repositories"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// PersistHandler writes delivered events to storage. It retries
// transient failures briefly; a write that still fails is logged and
// dropped, never propagated back to the emitting request.
type PersistHandler struct {
	repo   repositories.EventRepository
	logger *zap.Logger
}

// NewPersistHandler creates the persistence handler.
func NewPersistHandler(repo repositories.EventRepository, logger *zap.Logger) *PersistHandler {
	return &PersistHandler{repo: repo, logger: logger}
}

func (h *PersistHandler) Name() string { return "event-persist" }

func (h *PersistHandler) Handle(ctx context.Context, event models.Event) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 2), ctx)
	err := backoff.Retry(func() error {
		return h.repo.Insert(ctx, &event)
	}, policy)
	if err != nil {
		h.logger.Error("dropping unpersistable event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
	// fire-and-forget: the bus only logs handler errors anyway, and
	// this handler has already logged the drop
	return nil
}
