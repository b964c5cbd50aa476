package repositories

import (
	"context"
	"fmt"

	"agora/internal/database"
	"agora/internal/models"

	"go.uber.org/zap"
)

type instanceRepository struct {
	*BaseRepository
}

// NewInstanceRepository creates the instance repository.
func NewInstanceRepository(db *database.Manager, logger *zap.Logger) InstanceRepository {
	return &instanceRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const instanceColumns = `
	id, key, label, description, creator_id, create_time,
	allow_delegate, milestones, display_category_pages, locale, theme,
	allow_propose, allow_propose_changes, use_norms,
	show_norms_navigation, show_proposals_navigation,
	require_valid_email, default_group_id,
	editable_comments_default, editable_proposals_default,
	require_selection, hide_global_categories, page_index_as_tiles,
	hidden, frozen, is_authenticated, logo_as_background, css,
	thumbnailbadges_width, thumbnailbadges_height`

func (r *instanceRepository) Create(ctx context.Context, instance *models.Instance) error {
	query := `
		INSERT INTO instances (key, label, description, creator_id, locale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, create_time`

	err := r.QueryRowContext(ctx, query,
		instance.Key, instance.Label, instance.Description,
		instance.CreatorID, instance.Locale,
	).Scan(&instance.ID, &instance.CreatedAt)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	r.Logger().Info("instance created",
		zap.Int64("instance_id", instance.ID),
		zap.String("key", instance.Key),
	)
	return nil
}

func (r *instanceRepository) GetByID(ctx context.Context, id int64) (*models.Instance, error) {
	query := `SELECT` + instanceColumns + ` FROM instances WHERE id = $1`
	return r.scanInstance(ctx, query, id)
}

func (r *instanceRepository) GetByKey(ctx context.Context, key string) (*models.Instance, error) {
	query := `SELECT` + instanceColumns + ` FROM instances WHERE key = $1`
	return r.scanInstance(ctx, query, key)
}

func (r *instanceRepository) scanInstance(ctx context.Context, query string, arg any) (*models.Instance, error) {
	var i models.Instance
	err := r.QueryRowContext(ctx, query, arg).Scan(
		&i.ID, &i.Key, &i.Label, &i.Description, &i.CreatorID, &i.CreatedAt,
		&i.AllowDelegate, &i.Milestones, &i.DisplayCategoryPages, &i.Locale, &i.Theme,
		&i.AllowPropose, &i.AllowProposeChanges, &i.UseNorms,
		&i.ShowNormsNavigation, &i.ShowProposalsNavigation,
		&i.RequireValidEmail, &i.DefaultGroupID,
		&i.EditableCommentsDefault, &i.EditableProposalsDefault,
		&i.RequireSelection, &i.HideGlobalCategories, &i.PageIndexAsTiles,
		&i.Hidden, &i.Frozen, &i.IsAuthenticated, &i.LogoAsBackground, &i.CSS,
		&i.ThumbnailBadgesWidth, &i.ThumbnailBadgesHeight,
	)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &i, nil
}

// UpdateSettings persists the full settings attribute set in one
// statement. The settings coordinator diffs beforehand, so this runs
// only when at least one attribute actually changed.
func (r *instanceRepository) UpdateSettings(ctx context.Context, instance *models.Instance) error {
	query := `
		UPDATE instances SET
			label = $2, description = $3,
			allow_delegate = $4, milestones = $5,
			display_category_pages = $6, locale = $7, theme = $8,
			allow_propose = $9, allow_propose_changes = $10,
			use_norms = $11, show_norms_navigation = $12,
			show_proposals_navigation = $13,
			require_valid_email = $14, default_group_id = $15,
			editable_comments_default = $16,
			editable_proposals_default = $17,
			require_selection = $18, hide_global_categories = $19,
			page_index_as_tiles = $20, hidden = $21, frozen = $22,
			is_authenticated = $23, logo_as_background = $24, css = $25,
			thumbnailbadges_width = $26, thumbnailbadges_height = $27
		WHERE id = $1`

	result, err := r.ExecContext(ctx, query,
		instance.ID, instance.Label, instance.Description,
		instance.AllowDelegate, instance.Milestones,
		instance.DisplayCategoryPages, instance.Locale, instance.Theme,
		instance.AllowPropose, instance.AllowProposeChanges,
		instance.UseNorms, instance.ShowNormsNavigation,
		instance.ShowProposalsNavigation,
		instance.RequireValidEmail, instance.DefaultGroupID,
		instance.EditableCommentsDefault, instance.EditableProposalsDefault,
		instance.RequireSelection, instance.HideGlobalCategories,
		instance.PageIndexAsTiles, instance.Hidden, instance.Frozen,
		instance.IsAuthenticated, instance.LogoAsBackground, instance.CSS,
		instance.ThumbnailBadgesWidth, instance.ThumbnailBadgesHeight,
	)
	if err != nil {
		return fmt.Errorf("update instance settings: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r.Logger().Info("instance settings updated",
		zap.Int64("instance_id", instance.ID),
		zap.String("key", instance.Key),
	)
	return nil
}

func (r *instanceRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	r.Logger().Info("instance deleted", zap.Int64("instance_id", id))
	return nil
}

func (r *instanceRepository) AddMembership(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (user_id, instance_id, group_id)
		VALUES ($1, $2, $3)
		RETURNING id, create_time`

	err := r.QueryRowContext(ctx, query, m.UserID, m.InstanceID, m.GroupID).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (r *instanceRepository) GetMembership(ctx context.Context, userID, instanceID int64) (*models.Membership, error) {
	query := `
		SELECT id, user_id, instance_id, group_id, create_time, expire_time
		FROM memberships
		WHERE user_id = $1 AND instance_id = $2 AND expire_time IS NULL
		LIMIT 1`

	var m models.Membership
	err := r.QueryRowContext(ctx, query, userID, instanceID).Scan(
		&m.ID, &m.UserID, &m.InstanceID, &m.GroupID, &m.CreatedAt, &m.ExpiresAt,
	)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (r *instanceRepository) ExpireMembership(ctx context.Context, userID, instanceID int64) error {
	query := `
		UPDATE memberships SET expire_time = NOW()
		WHERE user_id = $1 AND instance_id = $2 AND expire_time IS NULL`

	result, err := r.ExecContext(ctx, query, userID, instanceID)
	if err != nil {
		return fmt.Errorf("expire membership: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
