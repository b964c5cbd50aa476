package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"agora/internal/database"
	"agora/internal/models"

	"go.uber.org/zap"
)

// badgeRepository stores all badge types in the single badges table
// with a type discriminator column.
type badgeRepository struct {
	*BaseRepository
}

// NewBadgeRepository creates the badge repository.
func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const badgeColumns = `
	id, type, title, color, description, instance_id, visible, impact,
	create_time, group_id, display_group, parent_id,
	select_child_description, long_description, thumbnail,
	behavior_proposal_sort_order`

// badgeColumnsJoined qualifies the badge columns for queries joining
// an assignment table aliased "a" against badges aliased "b".
const badgeColumnsJoined = `
	b.id, b.type, b.title, b.color, b.description, b.instance_id,
	b.visible, b.impact, b.create_time, b.group_id, b.display_group,
	b.parent_id, b.select_child_description, b.long_description,
	b.thumbnail, b.behavior_proposal_sort_order`

func (r *badgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	query := `
		INSERT INTO badges (
			type, title, color, description, instance_id, visible, impact,
			group_id, display_group, parent_id, select_child_description,
			long_description, thumbnail, behavior_proposal_sort_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, create_time`

	var (
		groupID          *int64
		displayGroup     bool
		parentID         *int64
		selectChildDescr string
		longDescr        string
		thumbnail        []byte
		sortOrder        string
	)
	if badge.User != nil {
		groupID = badge.User.GroupID
		displayGroup = badge.User.DisplayGroup
	}
	if badge.Category != nil {
		parentID = badge.Category.ParentID
		selectChildDescr = badge.Category.SelectChildDescription
		longDescr = badge.Category.LongDescription
	}
	if badge.Thumbnail != nil {
		thumbnail = badge.Thumbnail.Thumbnail
		sortOrder = badge.Thumbnail.ProposalSortOrder
	}

	err := r.QueryRowContext(ctx, query,
		badge.Type, badge.Title, badge.Color, badge.Description,
		badge.InstanceID, badge.Visible, badge.Impact,
		groupID, displayGroup, parentID, selectChildDescr,
		longDescr, thumbnail, nullableString(sortOrder),
	).Scan(&badge.ID, &badge.CreatedAt)
	if err != nil {
		return fmt.Errorf("create badge: %w", err)
	}

	r.Logger().Info("badge created",
		zap.Int64("badge_id", badge.ID),
		zap.String("type", string(badge.Type)),
		zap.String("title", badge.Title),
	)
	return nil
}

func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	query := `SELECT` + badgeColumns + ` FROM badges WHERE id = $1`
	badge, err := scanBadge(r.QueryRowContext(ctx, query, id))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get badge by id: %w", err)
	}
	return badge, nil
}

func (r *badgeRepository) Find(ctx context.Context, titleOrID string, instanceID *int64) (*models.Badge, error) {
	if id, err := strconv.ParseInt(titleOrID, 10, 64); err == nil {
		badge, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if instanceID != nil && (badge.InstanceID == nil || *badge.InstanceID != *instanceID) {
			return nil, ErrNotFound
		}
		return badge, nil
	}

	// exact title first, then prefix match
	query := `
		SELECT` + badgeColumns + `
		FROM badges
		WHERE (title = $1 OR title LIKE $1 || '%')
		  AND ($2::bigint IS NULL OR instance_id = $2)
		ORDER BY (title = $1) DESC, title
		LIMIT 1`
	badge, err := scanBadge(r.QueryRowContext(ctx, query, titleOrID, instanceID))
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find badge: %w", err)
	}
	return badge, nil
}

func (r *badgeRepository) List(ctx context.Context, instanceID *int64, visibleOnly bool, badgeType *models.BadgeType) ([]*models.Badge, error) {
	query := `
		SELECT` + badgeColumns + `
		FROM badges
		WHERE ($1::bigint IS NULL AND instance_id IS NULL OR instance_id = $1)
		  AND (NOT $2 OR visible)
		  AND ($3::text IS NULL OR type = $3)
		ORDER BY title`

	rows, err := r.QueryContext(ctx, query, instanceID, visibleOnly, (*string)(badgeType))
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
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

func (r *badgeRepository) Update(ctx context.Context, badge *models.Badge) error {
	// The type column is immutable; it is deliberately absent here.
	query := `
		UPDATE badges SET
			title = $2, color = $3, description = $4, instance_id = $5,
			visible = $6, impact = $7, group_id = $8, display_group = $9,
			parent_id = $10, select_child_description = $11,
			long_description = $12, thumbnail = $13,
			behavior_proposal_sort_order = $14
		WHERE id = $1`

	var (
		groupID          *int64
		displayGroup     bool
		parentID         *int64
		selectChildDescr string
		longDescr        string
		thumbnail        []byte
		sortOrder        string
	)
	if badge.User != nil {
		groupID = badge.User.GroupID
		displayGroup = badge.User.DisplayGroup
	}
	if badge.Category != nil {
		parentID = badge.Category.ParentID
		selectChildDescr = badge.Category.SelectChildDescription
		longDescr = badge.Category.LongDescription
	}
	if badge.Thumbnail != nil {
		thumbnail = badge.Thumbnail.Thumbnail
		sortOrder = badge.Thumbnail.ProposalSortOrder
	}

	result, err := r.ExecContext(ctx, query,
		badge.ID, badge.Title, badge.Color, badge.Description,
		badge.InstanceID, badge.Visible, badge.Impact,
		groupID, displayGroup, parentID, selectChildDescr,
		longDescr, thumbnail, nullableString(sortOrder),
	)
	if err != nil {
		return fmt.Errorf("update badge: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *badgeRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ExecContext(ctx, `DELETE FROM badges WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete badge: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.Logger().Info("badge deleted", zap.Int64("badge_id", id))
	return nil
}

func (r *badgeRepository) LoadParents(ctx context.Context, badge *models.Badge) error {
	current := badge
	for current.Category != nil && current.Category.ParentID != nil && current.Category.Parent == nil {
		parent, err := r.GetByID(ctx, *current.Category.ParentID)
		if err != nil {
			return fmt.Errorf("load badge parent chain: %w", err)
		}
		current.Category.Parent = parent
		current = parent
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBadge(row rowScanner) (*models.Badge, error) {
	var (
		badge            models.Badge
		groupID          sql.NullInt64
		displayGroup     sql.NullBool
		parentID         sql.NullInt64
		selectChildDescr sql.NullString
		longDescr        sql.NullString
		thumbnail        []byte
		sortOrder        sql.NullString
	)

	err := row.Scan(
		&badge.ID, &badge.Type, &badge.Title, &badge.Color,
		&badge.Description, &badge.InstanceID, &badge.Visible,
		&badge.Impact, &badge.CreatedAt,
		&groupID, &displayGroup, &parentID,
		&selectChildDescr, &longDescr, &thumbnail, &sortOrder,
	)
	if err != nil {
		return nil, err
	}

	switch badge.Type {
	case models.BadgeTypeUser:
		badge.User = &models.UserBadgeFields{DisplayGroup: displayGroup.Bool}
		if groupID.Valid {
			badge.User.GroupID = &groupID.Int64
		}
	case models.BadgeTypeCategory:
		badge.Category = &models.CategoryBadgeFields{
			SelectChildDescription: selectChildDescr.String,
			LongDescription:        longDescr.String,
		}
		if parentID.Valid {
			badge.Category.ParentID = &parentID.Int64
		}
	case models.BadgeTypeThumbnail:
		badge.Thumbnail = &models.ThumbnailBadgeFields{
			Thumbnail:         thumbnail,
			ProposalSortOrder: sortOrder.String,
		}
	}
	return &badge, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
