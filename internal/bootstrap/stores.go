package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/persistence"
	"github.com/spec-kit/auth-service/internal/repository"
)

// Stores holds the repositories selected by configuration and the handles
// behind them.
type Stores struct {
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	// Probes feeds the readiness endpoint.
	Probes map[string]persistence.Pinger

	closers []func()
}

// Close releases every opened handle in reverse order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStores connects the configured relational store, applies migrations and
// selects the session bookkeeping backend.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	stores := &Stores{Probes: map[string]persistence.Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		stores.closers = append(stores.closers, pg.Close)
		stores.Probes["postgres"] = pg

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				stores.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		stores.Users = repository.NewUserRepository(pg.PoolHandle())
		stores.Sessions = repository.NewSessionRepository(pg.PoolHandle())

	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		stores.closers = append(stores.closers, db.Close)
		stores.Probes["sqlite"] = db

		if err := persistence.RunSQLiteMigrations(ctx, db.DB, logger); err != nil {
			stores.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		stores.Users = repository.NewSQLiteUserRepository(db.DB)
		stores.Sessions = repository.NewSQLiteSessionRepository(db.DB)

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.SessionBackend == config.SessionBackendRedis {
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.closers = append(stores.closers, rdb.Close)
		stores.Probes["redis"] = rdb
		stores.Sessions = repository.NewRedisSessionRepository(rdb.Client)
	}

	logger.Info("stores ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("session_backend", cfg.Store.SessionBackend),
	)
	return stores, nil
}
