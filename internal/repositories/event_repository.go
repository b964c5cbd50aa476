package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// maxEventListLimit caps activity feed queries regardless of what the
// caller asks for.
const maxEventListLimit = 100

type eventRepository struct {
	*BaseRepository
}

// NewEventRepository creates the domain event repository.
func NewEventRepository(db *database.Manager, logger *zap.Logger) EventRepository {
	return &eventRepository{BaseRepository: NewBaseRepository(db, logger)}
}

func (r *eventRepository) Insert(ctx context.Context, event *models.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	query := `
		INSERT INTO events (id, type, actor_id, instance_id, topics, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING create_time`

	err = r.QueryRowContext(ctx, query,
		event.ID, event.Type, event.ActorID, event.InstanceID,
		pq.Array(event.Topics), payload,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter) ([]*models.Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxEventListLimit {
		limit = maxEventListLimit
	}

	query := `
		SELECT id, type, actor_id, instance_id, topics, payload, create_time
		FROM events
		WHERE ($1::bigint IS NULL OR instance_id = $1)
		  AND (cardinality($2::text[]) = 0 OR type = ANY($2))
		ORDER BY create_time DESC
		LIMIT $3`

	types := filter.Types
	if types == nil {
		types = []string{}
	}
	rows, err := r.QueryContext(ctx, query, filter.InstanceID, pq.Array(types), limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			e       models.Event
			topics  pq.StringArray
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.ActorID, &e.InstanceID, &topics, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Topics = topics
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				r.Logger().Warn("undecodable event payload",
					zap.String("event_id", e.ID),
					zap.Error(err),
				)
			}
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
