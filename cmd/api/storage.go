package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/config"
	"github.com/noah-isme/fabric-pricing/internal/db"
	"github.com/noah-isme/fabric-pricing/internal/shopauth"
	"github.com/noah-isme/fabric-pricing/internal/shopconfig"
)

// storage bundles the stores selected by DATABASE_URL.
type storage struct {
	configs  shopconfig.Store
	sessions shopauth.SessionStore
	ping     func(context.Context) error
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage, error) {
	dialect, dsn, err := db.Parse(cfg.DatabaseURL)
	if err != nil {
		return storage{}, err
	}

	switch dialect {
	case db.DialectPostgres:
		if cfg.AutoMigrate {
			if err := db.MigratePostgres(dsn, logger); err != nil {
				return storage{}, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := db.OpenPostgres(ctx, dsn)
		if err != nil {
			return storage{}, err
		}
		logger.Info().Str("dialect", string(dialect)).Msg("database connected")
		return storage{
			configs:  shopconfig.PostgresStore{DB: pool},
			sessions: shopauth.PostgresSessionStore{DB: pool},
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	case db.DialectSQLite:
		conn, err := db.OpenSQLite(ctx, dsn)
		if err != nil {
			return storage{}, err
		}
		logger.Info().Str("dialect", string(dialect)).Str("path", dsn).Msg("database opened")
		return storage{
			configs:  shopconfig.SQLiteStore{DB: conn},
			sessions: shopauth.SQLiteSessionStore{DB: conn},
			ping:     conn.PingContext,
			close:    func() { _ = conn.Close() },
		}, nil
	default:
		return storage{}, fmt.Errorf("unsupported database dialect %q", dialect)
	}
}
