package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agora/internal/database"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BaseRepository provides the shared database plumbing: query
// execution with slow-query logging, transaction handling and error
// classification.
type BaseRepository struct {
	db        *database.Manager
	logger    *zap.Logger
	slowQuery time.Duration
}

// NewBaseRepository creates the shared repository base.
func NewBaseRepository(db *database.Manager, logger *zap.Logger) *BaseRepository {
	return &BaseRepository{
		db:        db,
		logger:    logger,
		slowQuery: 100 * time.Millisecond,
	}
}

// ExecContext executes a statement, logging slow queries and
// failures.
func (r *BaseRepository) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, args...)
	r.observe(query, start, err)
	return result, err
}

// QueryContext executes a query that returns rows.
func (r *BaseRepository) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	r.observe(query, start, err)
	return rows, err
}

// QueryRowContext executes a query that returns a single row.
func (r *BaseRepository) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, args...)
	r.observe(query, start, nil)
	return row
}

func (r *BaseRepository) observe(query string, start time.Time, err error) {
	duration := time.Since(start)
	if duration > r.slowQuery {
		r.logger.Warn("slow query",
			zap.String("query", truncateQuery(query)),
			zap.Duration("duration", duration),
		)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("query failed",
			zap.String("query", truncateQuery(query)),
			zap.Error(err),
		)
	}
}

// WithTransaction runs fn inside a transaction, rolling back on error
// or panic. Nothing is ever partially applied.
func (r *BaseRepository) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsNotFound reports whether err is a missing-row error.
func (r *BaseRepository) IsNotFound(err error) bool {
	return IsNotFound(err)
}

// IsUniqueViolation reports whether err is a storage-layer
// uniqueness conflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Logger exposes the structured logger to embedding repositories.
func (r *BaseRepository) Logger() *zap.Logger { return r.logger }

func truncateQuery(query string) string {
	const maxLength = 200
	if len(query) <= maxLength {
		return query
	}
	return query[:maxLength] + "..."
}
