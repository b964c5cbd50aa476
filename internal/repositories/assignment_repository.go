package repositories

import (
	"context"
	"fmt"

	"agora/internal/database"
	"agora/internal/models"

	"go.uber.org/zap"
)

// assignmentRepository stores join rows for one target kind. The
// three join tables are structurally identical, so one implementation
// serves all of them with the table and target column derived from
// the kind.
type assignmentRepository struct {
	*BaseRepository
	kind models.BadgeTargetKind
}

// NewAssignmentRepository creates an assignment repository for the
// given target kind.
func NewAssignmentRepository(db *database.Manager, logger *zap.Logger, kind models.BadgeTargetKind) AssignmentRepository {
	return &assignmentRepository{
		BaseRepository: NewBaseRepository(db, logger),
		kind:           kind,
	}
}

// NewAssignmentRepositories creates one repository per target kind.
func NewAssignmentRepositories(db *database.Manager, logger *zap.Logger) map[models.BadgeTargetKind]AssignmentRepository {
	kinds := []models.BadgeTargetKind{models.TargetUser, models.TargetInstance, models.TargetDelegateable}
	repos := make(map[models.BadgeTargetKind]AssignmentRepository, len(kinds))
	for _, kind := range kinds {
		repos[kind] = NewAssignmentRepository(db, logger, kind)
	}
	return repos
}

func (r *assignmentRepository) Kind() models.BadgeTargetKind { return r.kind }

// Assign inserts the join row. The unique constraint on
// (badge_id, target_id) with ON CONFLICT DO NOTHING makes concurrent
// double assignment converge on a single row without racing a
// check-then-insert.
func (r *assignmentRepository) Assign(ctx context.Context, badgeID, targetID, creatorID int64) (bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (badge_id, %s, creator_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (badge_id, %s) DO NOTHING`,
		r.kind.Table(), r.kind.TargetColumn(), r.kind.TargetColumn())

	result, err := r.ExecContext(ctx, query, badgeID, targetID, creatorID)
	if err != nil {
		return false, fmt.Errorf("assign %s badge: %w", r.kind, err)
	}
	created, _ := result.RowsAffected()
	if created > 0 {
		r.Logger().Info("badge assigned",
			zap.String("target_kind", string(r.kind)),
			zap.Int64("badge_id", badgeID),
			zap.Int64("target_id", targetID),
		)
	}
	return created > 0, nil
}

func (r *assignmentRepository) Remove(ctx context.Context, badgeID, targetID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE badge_id = $1 AND %s = $2`,
		r.kind.Table(), r.kind.TargetColumn())

	result, err := r.ExecContext(ctx, query, badgeID, targetID)
	if err != nil {
		return fmt.Errorf("remove %s badge: %w", r.kind, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.Logger().Info("badge removed",
		zap.String("target_kind", string(r.kind)),
		zap.Int64("badge_id", badgeID),
		zap.Int64("target_id", targetID),
	)
	return nil
}

func (r *assignmentRepository) ListByTarget(ctx context.Context, targetID int64) ([]*models.BadgeAssignment, error) {
	query := fmt.Sprintf(`
		SELECT id, badge_id, %s, creator_id, create_time
		FROM %s WHERE %s = $1
		ORDER BY create_time, id`,
		r.kind.TargetColumn(), r.kind.Table(), r.kind.TargetColumn())
	return r.queryAssignments(ctx, query, targetID)
}

func (r *assignmentRepository) ListByBadge(ctx context.Context, badgeID int64) ([]*models.BadgeAssignment, error) {
	query := fmt.Sprintf(`
		SELECT id, badge_id, %s, creator_id, create_time
		FROM %s WHERE badge_id = $1
		ORDER BY create_time, id`,
		r.kind.TargetColumn(), r.kind.Table())
	return r.queryAssignments(ctx, query, badgeID)
}

func (r *assignmentRepository) queryAssignments(ctx context.Context, query string, arg int64) ([]*models.BadgeAssignment, error) {
	rows, err := r.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list %s assignments: %w", r.kind, err)
	}
	defer rows.Close()

	var assignments []*models.BadgeAssignment
	for rows.Next() {
		var a models.BadgeAssignment
		if err := rows.Scan(&a.ID, &a.BadgeID, &a.TargetID, &a.CreatorID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

func (r *assignmentRepository) BadgesForTarget(ctx context.Context, targetID int64) ([]*models.Badge, error) {
	query := fmt.Sprintf(`
		SELECT`+badgeColumnsJoined+`
		FROM badges b
		JOIN %s a ON a.badge_id = b.id
		WHERE a.%s = $1
		ORDER BY b.title`,
		r.kind.Table(), r.kind.TargetColumn())

	rows, err := r.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("badges for %s: %w", r.kind, err)
	}
	defer rows.Close()

	var badges []*models.Badge
	for rows.Next() {
		badge, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, badge)
	}
	return badges, rows.Err()
}

func (r *assignmentRepository) TargetIDsForBadge(ctx context.Context, badgeID int64) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM %s WHERE badge_id = $1 ORDER BY %s`,
		r.kind.TargetColumn(), r.kind.Table(), r.kind.TargetColumn())

	rows, err := r.QueryContext(ctx, query, badgeID)
	if err != nil {
		return nil, fmt.Errorf("targets for badge: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
