package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bher20/utilitybill/internal/migrate"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
	// DataDir is where the json driver keeps config.json and history.json.
	DataDir string
	// SkipMigrate leaves the SQL schema alone; run `migrate up` instead.
	SkipMigrate bool
	Logger      *zap.Logger
}

// Open constructs a Storage based on the given configuration.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	drv := cfg.Driver
	if drv == "" {
		drv = "json"
	}
	switch drv {
	case "json":
		log.Info("storage: using json files", zap.String("dir", cfg.DataDir))
		return OpenFile(cfg.DataDir, log)

	case "memory":
		log.Info("storage: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Info("storage: using gorm", zap.String("driver", drv))
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.SkipMigrate {
			return st, nil
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage migrate: %w", err)
		}
		return st, nil

	case "postgrespool":
		log.Info("storage: using pgx pool")
		if !cfg.SkipMigrate {
			if err := migrate.Up(ctx, drv, cfg.DSN); err != nil {
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		st, err := OpenPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage ping: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
