package repositories

import (
	"context"
	"fmt"

	"agora/internal/database"
	"agora/internal/models"

	"go.uber.org/zap"
)

// maxUsernameAttempts bounds the numbered-suffix retry loop when a
// username collides. After that the conflict surfaces to the caller.
const maxUsernameAttempts = 5

type userRepository struct {
	*BaseRepository
}

// NewUserRepository creates the user repository.
func NewUserRepository(db *database.Manager, logger *zap.Logger) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db, logger)}
}

// Create persists the user. Username collisions are retried with
// numbered suffixes in a bounded loop; exceeding the bound returns
// the underlying unique violation.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, create_time`

	base := user.Username
	var lastErr error
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt+1)
		}
		err := r.QueryRowContext(ctx, query,
			username, user.Email, user.PasswordHash, user.IsAdmin,
		).Scan(&user.ID, &user.CreatedAt)
		if err == nil {
			user.Username = username
			r.Logger().Info("user created",
				zap.Int64("user_id", user.ID),
				zap.String("username", username),
			)
			return nil
		}
		if !IsUniqueViolation(err) {
			return fmt.Errorf("create user: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("create user: no free username after %d attempts: %w",
		maxUsernameAttempts, lastErr)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, is_admin, create_time
		FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, email, password_hash, is_admin, create_time
		FROM users WHERE username = $1`
	return r.scanUser(ctx, query, username)
}

func (r *userRepository) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := r.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) GetGroupByCode(ctx context.Context, code string) (*models.Group, error) {
	query := `SELECT id, code, group_name FROM groups WHERE code = $1`

	var g models.Group
	err := r.QueryRowContext(ctx, query, code).Scan(&g.ID, &g.Code, &g.Name)
	if err != nil {
		if r.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}
