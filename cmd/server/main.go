package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"agora/internal/cache"
	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/events"
	"agora/internal/handlers/web"
	"agora/internal/logging"
	"agora/internal/middleware"
	"agora/internal/repositories"
	"agora/internal/router"
	"agora/internal/services"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("configuration error", zap.Error(err))
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("logger setup failed", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewManager(&cfg.Database, logger.Named("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		return err
	}

	var c cache.Cache = cache.NewNoopCache()
	if cfg.Cache.Enabled {
		c, err = cache.NewRedisCache(ctx, cfg.Cache.RedisURL, logger.Named("cache"))
		if err != nil {
			return err
		}
	}
	defer c.Close()

	repos := &repositories.Collection{
		Badges:      repositories.NewBadgeRepository(db, logger.Named("badges")),
		Assignments: repositories.NewAssignmentRepositories(db, logger.Named("assignments")),
		Instances:   repositories.NewInstanceRepository(db, logger.Named("instances")),
		Events:      repositories.NewEventRepository(db, logger.Named("events")),
		Users:       repositories.NewUserRepository(db, logger.Named("users")),
	}

	bus := events.NewBus(logger.Named("bus"), cfg.Events.BufferSize, cfg.Events.WorkerCount)
	bus.Subscribe(events.NewPersistHandler(repos.Events, logger.Named("persist")))

	svcs := services.NewCollection(repos, bus, c, logger)

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, repos.Users, logger.Named("auth"))

	handler := router.New(router.Deps{
		Badges:    web.NewBadgeHandler(svcs.Badges, logger.Named("web")),
		Instances: web.NewInstanceHandler(svcs.Instances, svcs.Settings, svcs.Badges, logger.Named("web")),
		Activity:  web.NewActivityHandler(svcs.Events, svcs.Instances, bus, cfg.Server.BaseURL, logger.Named("web")),
		Sessions:  web.NewSessionHandler(repos.Users, auth, cfg.Auth.BCryptCost, logger.Named("web")),
		Auth:      auth,
		DB:        db,
		Bus:       bus,
		Logger:    logger.Named("http"),
	})

	// subscriptions are in place, start delivering
	bus.Start(ctx)
	defer bus.Stop(cfg.Server.GracefulTimeout)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("shutdown complete", zap.Any("event_stats", bus.Stats()))
	return nil
}
