package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agora/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Manager owns the database connection pool. It is request-agnostic;
// transactions are opened per unit of work by the repositories.
type Manager struct {
	db     *sql.DB
	cfg    *config.DatabaseConfig
	logger *zap.Logger
}

// NewManager opens the connection pool and verifies connectivity,
// retrying with exponential backoff so the service survives a
// database that comes up slower than the process.
func NewManager(cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectRetries))
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("database not reachable yet",
			zap.Error(err),
			zap.Duration("retry_in", next),
		)
	}
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return &Manager{db: db, cfg: cfg, logger: logger}, nil
}

// DB exposes the pool for the repositories.
func (m *Manager) DB() *sql.DB { return m.db }

// ExecContext executes a statement on the pool.
func (m *Manager) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query returning rows.
func (m *Manager) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query returning a single row.
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (m *Manager) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return m.db.BeginTx(ctx, opts)
}

// Migrate applies pending schema migrations. A separate connection is
// used so the migrator closing its handle does not tear down the
// main pool.
func (m *Manager) Migrate(migrationsPath string) error {
	migrationDB, err := sql.Open("postgres", m.cfg.URL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath), "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	version, dirty, err := migrator.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is dirty at migration version %d", version)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, _ := migrator.Version()
	m.logger.Info("migrations applied",
		zap.Uint("from", version),
		zap.Uint("to", newVersion),
	)
	return nil
}

// Health pings the database within the given context.
func (m *Manager) Health(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Stats returns pool statistics for monitoring endpoints.
func (m *Manager) Stats() sql.DBStats { return m.db.Stats() }

// Close shuts down the pool.
func (m *Manager) Close() error { return m.db.Close() }
